package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteboard/quoteboard/internal/auth"
	"github.com/quoteboard/quoteboard/internal/content"
	"github.com/quoteboard/quoteboard/internal/observability"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
	"github.com/quoteboard/quoteboard/internal/users"
	"github.com/quoteboard/quoteboard/jobs"
)

type routerFixture struct {
	handler  http.Handler
	sessions *shared.SessionManager
	metrics  *observability.Metrics
}

func newRouterFixture(t *testing.T, cfg *Config) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	sessions := shared.NewSessionManager(client, "qb_session", "test-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	metrics := observability.NewMetrics()
	engine := rbac.NewEngine(rbac.NewStaticRegistry(), metrics, logger)
	rbacMW := rbac.Middleware{Engine: engine, Logger: logger}

	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		RBACMiddleware: rbacMW,
		AuthHandler:    auth.NewHandler(logger, nil, sessions, csrf),
		ContentHandler: content.NewHandler(logger, nil),
		UsersHandler:   users.NewHandler(logger, nil, rbacMW),
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        metrics,
	})
	return &routerFixture{handler: handler, sessions: sessions, metrics: metrics}
}

func testConfig() *Config {
	return &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 100, CSRFEnabled: true}
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// anonymousSession fetches /session and returns the session cookie and CSRF token.
func (f *routerFixture) anonymousSession(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Authenticated bool   `json:"authenticated"`
		CSRFToken     string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Authenticated)
	require.NotEmpty(t, body.CSRFToken)

	for _, c := range rec.Result().Cookies() {
		if c.Name == f.sessions.CookieName() {
			return c, body.CSRFToken
		}
	}
	t.Fatal("session cookie not set")
	return nil, ""
}

func TestRouterHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t, testConfig())

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Result().Cookies(), "anonymous requests without session data set no cookie")

	rec = f.serve(httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quoteboard_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestRouterUnknownRouteIsProblem(t *testing.T) {
	f := newRouterFixture(t, testConfig())
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouterAnonymousUserManagementRequiresLogin(t *testing.T) {
	f := newRouterFixture(t, testConfig())
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/listusers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), shared.ReasonNotAuthenticated)
}

func TestRouterCSRF(t *testing.T) {
	f := newRouterFixture(t, testConfig())
	cookie, token := f.anonymousSession(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := f.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, token+"x")
	rec = f.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, token)
	rec = f.serve(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouterCSRFDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.CSRFEnabled = false
	f := newRouterFixture(t, cfg)

	rec := f.serve(httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader("")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouterRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	f := newRouterFixture(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestSessionMiddlewareCommitsWithoutExplicitWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "qb_session", "test-secret", time.Hour, false)

	var id string
	h := SessionMiddleware(slog.New(slog.DiscardHandler), sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		sess.Set("k", "v")
		id = sess.ID
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, id)
	assert.True(t, mr.Exists("session:"+id))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.True(t, strings.HasPrefix(rec.Result().Cookies()[0].Value, id+"."))
}
