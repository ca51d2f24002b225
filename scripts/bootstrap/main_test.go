package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quoteboard/quoteboard/internal/app"
)

func TestCheckGuards(t *testing.T) {
	dev := &app.BootstrapConfig{AppEnv: "development"}
	prod := &app.BootstrapConfig{AppEnv: "production"}

	assert.ErrorIs(t, checkGuards(dev, flags{}), errNotConfirmed)
	assert.NoError(t, checkGuards(dev, flags{confirmDestroy: true}))
	assert.ErrorIs(t, checkGuards(prod, flags{confirmDestroy: true}), errProduction)
	assert.NoError(t, checkGuards(prod, flags{confirmDestroy: true, allowProduction: true}))
	assert.ErrorIs(t, checkGuards(prod, flags{allowProduction: true}), errNotConfirmed)
}

func TestCommandFlags(t *testing.T) {
	cmd := newCommand()
	for _, name := range []string{"confirm-destroy", "allow-production"} {
		flag := cmd.Flags().Lookup(name)
		if assert.NotNil(t, flag, name) {
			assert.Equal(t, "false", flag.DefValue)
		}
	}
}
