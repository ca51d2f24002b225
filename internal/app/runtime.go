package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "QUOTEBOARD_TEST_MODE"

// InTestMode reports whether QUOTEBOARD_TEST_MODE was set to a true value when
// first asked. Binaries return early in that case so package tests that import
// them never open connections.
var InTestMode = sync.OnceValue(func() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
})
