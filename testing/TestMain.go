// Package testing switches the binaries under cmd/ into test mode. Package tests
// import it for its side effect so that nothing they load dials Postgres or Redis.
package testing

import "os"

// EnvTestMode is read by app.InTestMode.
const EnvTestMode = "QUOTEBOARD_TEST_MODE"

func init() {
	if os.Getenv(EnvTestMode) == "" {
		_ = os.Setenv(EnvTestMode, "1")
	}
}
