package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildTarGz builds an in-memory tar.gz from a name->content map.
func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzWriter)

	for name, content := range files {
		header := &tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tarWriter.Write([]byte(content)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gzWriter.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractBytes(t *testing.T) {
	t.Run("extracts files into dest dir", func(t *testing.T) {
		dest := t.TempDir()
		blob := buildTarGz(t, map[string]string{
			"manifest.json":  `{"version": "1.0.0"}`,
			"files/a.txt":    "alpha",
			"files/deep/b":   "beta",
		})

		if err := ExtractBytes(blob, dest); err != nil {
			t.Fatalf("ExtractBytes failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dest, "files", "a.txt"))
		if err != nil {
			t.Fatalf("read extracted file: %v", err)
		}
		if string(data) != "alpha" {
			t.Errorf("expected alpha, got %q", data)
		}
		if _, err := os.Stat(filepath.Join(dest, "files", "deep", "b")); err != nil {
			t.Errorf("expected nested file: %v", err)
		}
	})

	t.Run("rejects path traversal entries", func(t *testing.T) {
		dest := t.TempDir()
		blob := buildTarGz(t, map[string]string{"../escape.txt": "bad"})

		err := ExtractBytes(blob, dest)
		if err == nil || !strings.Contains(err.Error(), "illegal file path") {
			t.Errorf("expected traversal rejection, got %v", err)
		}
	})

	t.Run("rejects non-gzip blobs", func(t *testing.T) {
		if err := ExtractBytes([]byte("not an archive"), t.TempDir()); err == nil {
			t.Error("expected error for non-gzip blob")
		}
	})
}

func TestExtractTarGz(t *testing.T) {
	t.Run("fails on missing archive", func(t *testing.T) {
		if err := ExtractTarGz(filepath.Join(t.TempDir(), "missing.tar.gz"), t.TempDir()); err == nil {
			t.Error("expected error for missing archive")
		}
	})
}
