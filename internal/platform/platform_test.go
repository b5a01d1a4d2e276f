package platform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckInstallRoot(t *testing.T) {
	t.Run("accepts a writable directory", func(t *testing.T) {
		if err := CheckInstallRoot(t.TempDir()); err != nil {
			t.Errorf("CheckInstallRoot failed: %v", err)
		}
	})

	t.Run("rejects a missing root", func(t *testing.T) {
		err := CheckInstallRoot(filepath.Join(t.TempDir(), "missing"))
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("expected missing-root error, got %v", err)
		}
	})

	t.Run("rejects a file as root", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		err := CheckInstallRoot(path)
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Errorf("expected not-a-directory error, got %v", err)
		}
	})

	t.Run("leaves no probe file behind", func(t *testing.T) {
		root := t.TempDir()
		if err := CheckInstallRoot(root); err != nil {
			t.Fatalf("CheckInstallRoot failed: %v", err)
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty root after probe, found %d entries", len(entries))
		}
	})
}

func TestCheckFreeSpace(t *testing.T) {
	t.Run("passes for a tiny requirement", func(t *testing.T) {
		if err := CheckFreeSpace(context.Background(), t.TempDir(), 1); err != nil {
			t.Errorf("CheckFreeSpace failed: %v", err)
		}
	})

	t.Run("fails for an absurd requirement", func(t *testing.T) {
		// No test machine has this much free space on one partition.
		const exabyte = 1 << 60
		err := CheckFreeSpace(context.Background(), t.TempDir(), exabyte)
		if err == nil || !strings.Contains(err.Error(), "insufficient free space") {
			t.Errorf("expected free-space error, got %v", err)
		}
	})
}
