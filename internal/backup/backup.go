// Package backup preserves the prior contents of files about to be
// overwritten, and restores them on uninstall.
//
// Two independent recovery paths exist: per-file backups taken by the file
// mapper right before each overwrite, and a coarser whole-run bundle
// archived before an update touches anything. Backups are named from the
// full relative target path with separators flattened, so targets sharing
// a filename under different prefixes never collide.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnsgarHolmDietrichson/veneer/internal/config"
)

// Record points from an overwritten target path to where its prior content
// was preserved. It is serialized into the installation record.
type Record struct {
	Target string `json:"target"`
	Backup string `json:"backup"`
}

// Store owns the backup artifacts under <root>/.veneer/backups. It is
// named independently of the installation record so a restore works as
// long as the record was persisted, even if the in-memory copy is lost.
type Store struct {
	backupDir string
	bundleDir string
	root      string
	logger    config.Logger
}

// NewStore creates a backup store for the given installation root.
func NewStore(installRoot, stateDir string, logger config.Logger) *Store {
	if logger == nil {
		logger = config.DefaultLogger()
	}
	return &Store{
		backupDir: filepath.Join(stateDir, "backups"),
		bundleDir: filepath.Join(stateDir, "bundles"),
		root:      installRoot,
		logger:    logger,
	}
}

// FlattenTarget derives a collision-free backup identifier from a relative
// target path by replacing path separators.
func FlattenTarget(target string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(target) + ".bak"
}

// Backup preserves the current bytes of target (a path relative to the
// installation root). The caller only invokes this when the target exists.
// The backup is fully durable before Backup returns, so the corresponding
// overwrite can never race ahead of it.
func (s *Store) Backup(target string) (Record, error) {
	src := filepath.Join(s.root, filepath.FromSlash(target))

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return Record{}, fmt.Errorf("create backup directory: %w", err)
	}

	name := FlattenTarget(target)
	dest := filepath.Join(s.backupDir, name)

	if err := copyFileSync(src, dest); err != nil {
		return Record{}, fmt.Errorf("backup %s: %w", target, err)
	}

	return Record{Target: target, Backup: name}, nil
}

// Restore writes a backup's preserved bytes back over its target. A
// missing backup artifact is logged and skipped, not fatal: uninstall is
// best-effort per record.
func (s *Store) Restore(rec Record) error {
	src := filepath.Join(s.backupDir, rec.Backup)

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("backup artifact missing, skipping restore",
				"target", rec.Target, "backup", rec.Backup)
			return nil
		}
		return fmt.Errorf("stat backup %s: %w", rec.Backup, err)
	}

	dest := filepath.Join(s.root, filepath.FromSlash(rec.Target))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	if err := copyFileSync(src, dest); err != nil {
		return fmt.Errorf("restore %s: %w", rec.Target, err)
	}

	return nil
}

// Path returns the filesystem path of a backup artifact.
func (s *Store) Path(rec Record) string {
	return filepath.Join(s.backupDir, rec.Backup)
}

// copyFileSync copies src to dest and syncs the destination before
// returning, so the bytes are durable.
func copyFileSync(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy contents: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("sync destination: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	return nil
}
