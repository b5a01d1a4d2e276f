package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
)

// CreateBundle archives the currently installed files (per the existing
// record's file list) into a single dated tar.gz before an update applies
// new files. Files missing from the installation root are logged and
// skipped. Returns the bundle path.
func (s *Store) CreateBundle(version, operationID string, files []manifest.FileEntry) (string, error) {
	if err := os.MkdirAll(s.bundleDir, 0755); err != nil {
		return "", fmt.Errorf("create bundle directory: %w", err)
	}

	name := fmt.Sprintf("preupdate-%s-%s-%s.tar.gz",
		version, time.Now().UTC().Format("20060102T150405Z"), operationID)
	bundlePath := filepath.Join(s.bundleDir, name)

	out, err := os.OpenFile(bundlePath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create bundle: %w", err)
	}

	gzWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzWriter)

	for _, f := range files {
		if err := s.addBundleEntry(tarWriter, f.Target); err != nil {
			tarWriter.Close()
			gzWriter.Close()
			out.Close()
			os.Remove(bundlePath)
			return "", fmt.Errorf("bundle %s: %w", f.Target, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		gzWriter.Close()
		out.Close()
		os.Remove(bundlePath)
		return "", fmt.Errorf("close tar writer: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		out.Close()
		os.Remove(bundlePath)
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(bundlePath)
		return "", fmt.Errorf("sync bundle: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close bundle: %w", err)
	}

	return bundlePath, nil
}

// addBundleEntry streams one installed file into the archive. Missing
// files are skipped with a warning.
func (s *Store) addBundleEntry(tw *tar.Writer, target string) error {
	path := filepath.Join(s.root, filepath.FromSlash(target))

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("installed file missing, skipping bundle entry", "target", target)
			return nil
		}
		return fmt.Errorf("stat: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header: %w", err)
	}
	header.Name = filepath.ToSlash(target)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}

	return nil
}

// PruneBundles removes pre-update bundles beyond the retention limit,
// keeping the newest. A limit of zero (or less) keeps everything.
func (s *Store) PruneBundles(keep int) error {
	if keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.bundleDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read bundle directory: %w", err)
	}

	type bundle struct {
		name    string
		modTime time.Time
	}

	var bundles []bundle
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		bundles = append(bundles, bundle{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(bundles) <= keep {
		return nil
	}

	// Newest first
	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].modTime.After(bundles[j].modTime)
	})

	for _, b := range bundles[keep:] {
		path := filepath.Join(s.bundleDir, b.name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to prune bundle", "bundle", b.name, "error", err)
			continue
		}
		s.logger.Debug("pruned bundle", "bundle", b.name)
	}

	return nil
}
