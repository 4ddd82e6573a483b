// Package guard switches the binaries into test mode when a test package imports it, so
// that building an app in unit tests never dials Postgres or Redis.
package guard

import "os"

// TestModeEnv is the variable read by app.InTestMode.
const TestModeEnv = "ODYSSEY_TEST_MODE"

func init() {
	if _, set := os.LookupEnv(TestModeEnv); !set {
		_ = os.Setenv(TestModeEnv, "1")
	}
}
