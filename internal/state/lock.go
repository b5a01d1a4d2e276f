package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's
	// considered stale.
	StaleLockThreshold = 10 * time.Minute

	lockFile = "veneer.lock"
)

var (
	ErrLockHeld = errors.New("operation lock exists: another operation may be in progress")
)

// Lock serializes operations against one installation root. Install,
// update, and uninstall each hold it for their full duration; concurrent
// operations against the same root are refused rather than left undefined.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock attempts to acquire the exclusive operation lock for an
// installation root. Uses O_CREATE|O_EXCL for atomic lock creation; a lock
// older than StaleLockThreshold is removed and retried once.
func AcquireLock(installRoot, operationID string) (*Lock, error) {
	dir := Dir(installRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	lockPath := filepath.Join(dir, lockFile)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			if isStale, _ := isLockStale(lockPath); isStale {
				os.Remove(lockPath)
				file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
				if err != nil {
					return nil, ErrLockHeld
				}
			} else {
				return nil, ErrLockHeld
			}
		} else {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
	}

	lockData := fmt.Sprintf("pid=%d\noperation=%s\ntimestamp=%s\n",
		os.Getpid(), operationID, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{
		path: lockPath,
		file: file,
	}, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
