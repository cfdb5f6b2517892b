package app

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// TestModeEnv switches the binaries into a no-connect mode when truthy.
const TestModeEnv = "EQUINOX_TEST_MODE"

var (
	testModeLoaded atomic.Bool
	testModeFlag   atomic.Bool
)

func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && on
}

// InTestMode reports whether binaries should skip connecting to Postgres,
// Redis and the job queue. The environment is read once.
func InTestMode() bool {
	if !testModeLoaded.Load() {
		RefreshTestMode()
	}
	return testModeFlag.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	testModeFlag.Store(parseTestMode(os.Getenv(TestModeEnv)))
	testModeLoaded.Store(true)
}
