package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quoteboard/quoteboard/internal/app"
	_ "github.com/quoteboard/quoteboard/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
