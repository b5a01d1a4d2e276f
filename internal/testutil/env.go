// Package testutil provides utilities for testing veneer in isolation.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv isolates a test from the developer's machine. Package
// extraction uses the process temp directory as scratch space; pointing
// TMPDIR at a per-test directory keeps concurrent test runs from ever
// seeing each other's extracted packages, and t.TempDir handles cleanup.
func SetupTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
}

// WriteConfig writes a minimal valid veneer.lua pointing at the given
// installation root and returns its path.
func WriteConfig(t *testing.T, panel string) string {
	t.Helper()

	content := fmt.Sprintf(`
veneer = {
	panel = %q,
	owner = "1042",
	app = "shinyaddon",
	license_key = "VNR-KEY",
	api = "https://api.example.com",
}
`, panel)

	path := filepath.Join(t.TempDir(), "veneer.lua")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}
