package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.CSRFEnabled)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.RedisDB)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CSRF_ENABLED", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	_, err := LoadConfig()
	assert.Error(t, err, "rate limit must be positive")

	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.CSRFEnabled)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadBootstrapConfig(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/quoteboard")
	t.Setenv("SUPERADMIN_EMAIL", "root@example.com")
	t.Setenv("SUPERADMIN_PASSWORD", "Sup3r!secret")

	cfg, err := LoadBootstrapConfig()
	require.NoError(t, err)
	assert.Equal(t, "Super", cfg.FirstName)
	assert.Equal(t, "Admin", cfg.LastName)
	assert.False(t, cfg.IsProduction())
}
