package testutil

import (
	"os"
	"testing"
)

// SkipIfShort skips container-backed tests in -short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireDocker skips the test in -short mode or when DOCSTREAM_SKIP_DOCKER is set.
func RequireDocker(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv("DOCSTREAM_SKIP_DOCKER") != "" {
		t.Skip("skipping container test (DOCSTREAM_SKIP_DOCKER set)")
	}
}
