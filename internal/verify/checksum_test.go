package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSHA256(t *testing.T) {
	t.Run("hashes file contents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.txt")
		content := []byte("hello veneer")
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}

		sum := sha256.Sum256(content)
		expected := hex.EncodeToString(sum[:])

		actual, err := FileSHA256(path)
		if err != nil {
			t.Fatalf("FileSHA256 failed: %v", err)
		}
		if actual != expected {
			t.Errorf("expected %s, got %s", expected, actual)
		}
	})

	t.Run("fails on missing file", func(t *testing.T) {
		if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	sum := sha256.Sum256([]byte("payload"))
	digest := hex.EncodeToString(sum[:])

	t.Run("trusts entries without a digest", func(t *testing.T) {
		ok, err := Checksum(path, "")
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if !ok {
			t.Error("expected file without digest to be trusted")
		}
	})

	t.Run("accepts a matching digest", func(t *testing.T) {
		ok, err := Checksum(path, digest)
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if !ok {
			t.Error("expected matching digest to verify")
		}
	})

	t.Run("digest comparison is case-insensitive", func(t *testing.T) {
		ok, err := Checksum(path, strings.ToUpper(digest))
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if !ok {
			t.Error("expected uppercase digest to verify")
		}
	})

	t.Run("rejects a mismatched digest", func(t *testing.T) {
		ok, err := Checksum(path, strings.Repeat("0", 64))
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if ok {
			t.Error("expected mismatched digest to fail")
		}
	})
}
