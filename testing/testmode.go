// Package testing switches the binaries into test mode when imported for
// side effects, so a main package can be exercised without its backends.
package testing

import (
	"os"

	"github.com/gymdesk/gymdesk/internal/app"
)

func init() {
	if !app.InTestMode() {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
}
