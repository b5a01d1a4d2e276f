// Package mapper applies a declared (source, target) file mapping from an
// extracted package root onto an installation root.
//
// The mapper runs in one of two policies. Strict (the default) is
// two-phase: every declared file is validated against the package root
// first, and any missing source or digest mismatch fails the whole apply
// before a single byte of the installation root changes. Permissive
// records those as per-file failures and keeps going. In both policies a
// target that already exists is backed up before it is overwritten, never
// after.
package mapper

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AnsgarHolmDietrichson/veneer/internal/backup"
	"github.com/AnsgarHolmDietrichson/veneer/internal/config"
	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
	"github.com/AnsgarHolmDietrichson/veneer/internal/verify"
)

// Policy selects how the mapper treats per-file validation failures.
type Policy int

const (
	// PolicyStrict aborts the whole apply before any mutation when any
	// declared file fails validation.
	PolicyStrict Policy = iota
	// PolicyPermissive records validation failures per file and continues.
	PolicyPermissive
)

// Failure reasons surfaced in Result.Failed.
const (
	ReasonSourceMissing = "source file not found"
	ReasonIntegrity     = "integrity check failed"
)

// ErrValidation is returned by strict applies that fail before mutation.
var ErrValidation = errors.New("package validation failed")

// Failure pairs a target with the reason it was not applied.
type Failure struct {
	Target string
	Reason string
}

// Result reports the outcome per entry. Every input entry ends up in
// exactly one of Succeeded or Failed; nothing is silently dropped.
type Result struct {
	Succeeded []string
	Failed    []Failure
	Backups   []backup.Record
}

// Mapper copies declared files into place, backing up what it overwrites.
type Mapper struct {
	store  *backup.Store
	policy Policy
	logger config.Logger
}

// New creates a mapper using the given backup store and policy.
func New(store *backup.Store, policy Policy, logger config.Logger) *Mapper {
	if logger == nil {
		logger = config.DefaultLogger()
	}
	return &Mapper{store: store, policy: policy, logger: logger}
}

// Apply maps every manifest entry from packageRoot into installRoot, in
// manifest order. Under PolicyStrict a validation failure returns an error
// wrapping ErrValidation with the installation root untouched.
func (m *Mapper) Apply(files []manifest.FileEntry, packageRoot, installRoot string) (*Result, error) {
	if m.policy == PolicyStrict {
		if err := m.validateAll(files, packageRoot); err != nil {
			return nil, err
		}
	}

	result := &Result{}

	for _, entry := range files {
		if reason, err := m.applyOne(entry, packageRoot, installRoot, result); err != nil {
			m.logger.Warn("file not applied", "target", entry.Target, "reason", reason, "error", err)
			result.Failed = append(result.Failed, Failure{Target: entry.Target, Reason: reason})
			continue
		}
		m.logger.Debug("file applied", "target", entry.Target)
		result.Succeeded = append(result.Succeeded, entry.Target)
	}

	return result, nil
}

// validateAll is the strict-mode first phase: confirm every source exists
// and every declared digest matches before any mutation.
func (m *Mapper) validateAll(files []manifest.FileEntry, packageRoot string) error {
	for _, entry := range files {
		src := filepath.Join(packageRoot, filepath.FromSlash(entry.Source))

		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s: %s", ErrValidation, entry.Source, ReasonSourceMissing)
		}

		ok, err := verify.Checksum(src, entry.SHA256)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, entry.Source, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s: %s", ErrValidation, entry.Source, ReasonIntegrity)
		}
	}
	return nil
}

// applyOne handles a single entry. On failure it returns the per-file
// reason plus the underlying error.
func (m *Mapper) applyOne(entry manifest.FileEntry, packageRoot, installRoot string, result *Result) (string, error) {
	src := filepath.Join(packageRoot, filepath.FromSlash(entry.Source))

	info, err := os.Stat(src)
	if err != nil {
		return ReasonSourceMissing, err
	}
	if !info.Mode().IsRegular() {
		return ReasonSourceMissing, fmt.Errorf("not a regular file: %s", entry.Source)
	}

	ok, err := verify.Checksum(src, entry.SHA256)
	if err != nil {
		return ReasonIntegrity, err
	}
	if !ok {
		return ReasonIntegrity, fmt.Errorf("digest mismatch for %s", entry.Source)
	}

	dest := filepath.Join(installRoot, filepath.FromSlash(entry.Target))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "create target directory failed", err
	}

	// Backup before overwrite, never the reverse.
	if _, err := os.Stat(dest); err == nil {
		rec, err := m.store.Backup(entry.Target)
		if err != nil {
			return "backup failed", err
		}
		result.Backups = append(result.Backups, rec)
	}

	if err := copyFile(src, dest); err != nil {
		return "copy failed", err
	}

	return "", nil
}

// copyFile copies src to dest, preserving the source mode.
func copyFile(src, dest string) error {
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
		return fmt.Errorf("copy contents: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	return nil
}
