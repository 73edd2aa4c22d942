package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes the binaries return before opening Postgres or Redis.
const TestModeEnv = "GYMDESK_TEST_MODE"

// InTestMode reports whether TestModeEnv holds a true value. It is read on
// every call so tests may toggle it with t.Setenv.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
