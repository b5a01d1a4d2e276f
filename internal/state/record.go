// Package state persists the single installation record that makes
// uninstall and update possible, and guards it with a lock file.
//
// The record lives at a well-known subpath inside the installation root so
// install, update, and uninstall always agree on where to look. At most
// one record exists per root; it is fully replaced on each successful
// operation, never merged.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AnsgarHolmDietrichson/veneer/internal/backup"
	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
)

const (
	// DirName is the state directory under the installation root.
	DirName = ".veneer"

	recordFile = "installed.json"
)

// ErrNotInstalled is returned by Load when no record exists for the root.
var ErrNotInstalled = errors.New("no installation record found")

// Record is the durable snapshot of the currently-applied file set and the
// backups taken while applying it. It is the sole source of truth for
// uninstall.
type Record struct {
	InstalledAt int64                `json:"installed_at"`
	Version     string               `json:"version"`
	Files       []manifest.FileEntry `json:"files"`
	Backups     []backup.Record      `json:"backups"`
}

// NewRecord builds a record stamped with the current time.
func NewRecord(version string, files []manifest.FileEntry, backups []backup.Record) *Record {
	if files == nil {
		files = []manifest.FileEntry{}
	}
	if backups == nil {
		backups = []backup.Record{}
	}
	return &Record{
		InstalledAt: time.Now().UTC().Unix(),
		Version:     version,
		Files:       files,
		Backups:     backups,
	}
}

// Dir returns the state directory for an installation root.
func Dir(installRoot string) string {
	return filepath.Join(installRoot, DirName)
}

// RecordPath returns the record location for an installation root.
func RecordPath(installRoot string) string {
	return filepath.Join(Dir(installRoot), recordFile)
}

// Load reads the installation record for a root. Returns ErrNotInstalled
// when none exists.
func Load(installRoot string) (*Record, error) {
	data, err := os.ReadFile(RecordPath(installRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInstalled
		}
		return nil, fmt.Errorf("read installation record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal installation record: %w", err)
	}

	return &rec, nil
}

// Save writes the record atomically: new content goes to a temporary file
// in the same directory and is renamed into place, so a crash mid-write
// never corrupts the previous record. The directory is synced for
// durability.
func Save(installRoot string, rec *Record) error {
	dir := Dir(installRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	finalPath := RecordPath(installRoot)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal installation record: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temporary record file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename record file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync state directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}
