package backup

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return NewStore(root, filepath.Join(root, ".veneer"), nil), root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestFlattenTarget(t *testing.T) {
	t.Run("flattens path separators", func(t *testing.T) {
		if got := FlattenTarget("public/index.php"); got != "public_index.php.bak" {
			t.Errorf("unexpected flattened name: %s", got)
		}
	})

	t.Run("same filename under different prefixes never collides", func(t *testing.T) {
		a := FlattenTarget("x/a.txt")
		b := FlattenTarget("y/a.txt")
		if a == b {
			t.Errorf("expected distinct names, got %s for both", a)
		}
	})
}

func TestBackup(t *testing.T) {
	t.Run("preserves target bytes", func(t *testing.T) {
		store, root := newTestStore(t)
		writeFile(t, filepath.Join(root, "public", "index.php"), "original")

		rec, err := store.Backup("public/index.php")
		if err != nil {
			t.Fatalf("Backup failed: %v", err)
		}

		if rec.Target != "public/index.php" {
			t.Errorf("unexpected record target: %s", rec.Target)
		}
		if got := readFile(t, store.Path(rec)); got != "original" {
			t.Errorf("expected backup content 'original', got %q", got)
		}
	})

	t.Run("fails when target does not exist", func(t *testing.T) {
		store, _ := newTestStore(t)
		if _, err := store.Backup("missing.txt"); err == nil {
			t.Error("expected error for missing target")
		}
	})
}

func TestRestore(t *testing.T) {
	t.Run("round-trips target content", func(t *testing.T) {
		store, root := newTestStore(t)
		target := filepath.Join(root, "x", "a.txt")
		writeFile(t, target, "pre-install content")

		rec, err := store.Backup("x/a.txt")
		if err != nil {
			t.Fatalf("Backup failed: %v", err)
		}

		// Simulate the overwrite and subsequent removal
		writeFile(t, target, "new content")
		if err := os.Remove(target); err != nil {
			t.Fatalf("remove target: %v", err)
		}

		if err := store.Restore(rec); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if got := readFile(t, target); got != "pre-install content" {
			t.Errorf("expected restored content, got %q", got)
		}
	})

	t.Run("missing artifact is skipped, not fatal", func(t *testing.T) {
		store, _ := newTestStore(t)
		rec := Record{Target: "x/a.txt", Backup: "x_a.txt.bak"}
		if err := store.Restore(rec); err != nil {
			t.Errorf("expected missing backup to be skipped, got %v", err)
		}
	})
}

func TestCreateBundle(t *testing.T) {
	t.Run("archives installed files", func(t *testing.T) {
		store, root := newTestStore(t)
		writeFile(t, filepath.Join(root, "a.txt"), "alpha")
		writeFile(t, filepath.Join(root, "sub", "b.txt"), "beta")

		files := []manifest.FileEntry{
			{Source: "files/a.txt", Target: "a.txt"},
			{Source: "files/b.txt", Target: "sub/b.txt"},
			{Source: "files/c.txt", Target: "gone.txt"}, // missing: skipped
		}

		bundlePath, err := store.CreateBundle("1.0.0", "op-1", files)
		if err != nil {
			t.Fatalf("CreateBundle failed: %v", err)
		}

		contents := readBundle(t, bundlePath)
		if contents["a.txt"] != "alpha" {
			t.Errorf("expected a.txt=alpha, got %q", contents["a.txt"])
		}
		if contents["sub/b.txt"] != "beta" {
			t.Errorf("expected sub/b.txt=beta, got %q", contents["sub/b.txt"])
		}
		if _, ok := contents["gone.txt"]; ok {
			t.Error("missing file should have been skipped")
		}
	})
}

func TestPruneBundles(t *testing.T) {
	t.Run("keeps the newest N bundles", func(t *testing.T) {
		store, root := newTestStore(t)
		bundleDir := filepath.Join(root, ".veneer", "bundles")
		if err := os.MkdirAll(bundleDir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		base := time.Now().Add(-time.Hour)
		names := []string{"old.tar.gz", "mid.tar.gz", "new.tar.gz"}
		for i, name := range names {
			path := filepath.Join(bundleDir, name)
			writeFile(t, path, "bundle")
			stamp := base.Add(time.Duration(i) * time.Minute)
			if err := os.Chtimes(path, stamp, stamp); err != nil {
				t.Fatalf("chtimes: %v", err)
			}
		}

		if err := store.PruneBundles(2); err != nil {
			t.Fatalf("PruneBundles failed: %v", err)
		}

		if _, err := os.Stat(filepath.Join(bundleDir, "old.tar.gz")); !os.IsNotExist(err) {
			t.Error("expected oldest bundle to be pruned")
		}
		for _, name := range []string{"mid.tar.gz", "new.tar.gz"} {
			if _, err := os.Stat(filepath.Join(bundleDir, name)); err != nil {
				t.Errorf("expected %s to survive pruning: %v", name, err)
			}
		}
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		store, root := newTestStore(t)
		bundleDir := filepath.Join(root, ".veneer", "bundles")
		writeFile(t, filepath.Join(bundleDir, "only.tar.gz"), "bundle")

		if err := store.PruneBundles(0); err != nil {
			t.Fatalf("PruneBundles failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(bundleDir, "only.tar.gz")); err != nil {
			t.Errorf("expected bundle to survive: %v", err)
		}
	})

	t.Run("no bundle directory is fine", func(t *testing.T) {
		store, _ := newTestStore(t)
		if err := store.PruneBundles(5); err != nil {
			t.Errorf("PruneBundles failed: %v", err)
		}
	})
}

// readBundle extracts a tar.gz bundle into a map of name to content.
func readBundle(t *testing.T, path string) map[string]string {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gzReader.Close()

	contents := map[string]string{}
	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar header: %v", err)
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			t.Fatalf("read tar entry: %v", err)
		}
		contents[header.Name] = string(data)
	}
	return contents
}
