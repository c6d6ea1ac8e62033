package testutil

import (
	"os"
	"slices"
	"testing"
)

// Mode selects what the scraper tests run against, from SCRAPER_TEST_MODE.
type Mode string

const (
	ModeMock   Mode = "mock"   // Use static fixtures
	ModeReplay Mode = "replay" // Replay recorded sessions
	ModeLive   Mode = "live"   // Hit the real portal or a local Chrome (dangerous!)
)

const modeEnv = "SCRAPER_TEST_MODE"

func CurrentMode() Mode {
	mode := os.Getenv(modeEnv)
	if mode == "" {
		return ModeMock
	}
	return Mode(mode)
}

// SkipUnlessMode skips the test unless SCRAPER_TEST_MODE is one of modes.
func SkipUnlessMode(t *testing.T, modes ...Mode) {
	t.Helper()
	if !slices.Contains(modes, CurrentMode()) {
		t.Skipf("Skipping: requires %s in %v", modeEnv, modes)
	}
}
