// Package testenv switches binaries into test mode so their main functions
// return before dialing Postgres or Redis.
package testenv

import (
	"os"
	"testing"

	"github.com/equinox-erp/equinox/internal/app"
)

// Enable sets the test-mode variable for the duration of t.
func Enable(t testing.TB) {
	t.Helper()
	t.Setenv(app.TestModeEnv, "1")
	app.RefreshTestMode()
	t.Cleanup(app.RefreshTestMode)
}

// Main runs m with test mode on. Use it from a package TestMain.
func Main(m *testing.M) {
	_ = os.Setenv(app.TestModeEnv, "1")
	app.RefreshTestMode()
	os.Exit(m.Run())
}
