// Package installer sequences the three top-level operations — install,
// update, uninstall — over the manifest, mapper, backup, and state
// components.
//
// One operation per invocation, no cross-invocation state beyond the
// installation record itself. Every operation takes the root's lock for
// its full duration and releases it on every exit path. The temporary
// extraction directory is owned by a single invocation and removed on
// both success and failure.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/AnsgarHolmDietrichson/veneer/internal/archive"
	"github.com/AnsgarHolmDietrichson/veneer/internal/backup"
	"github.com/AnsgarHolmDietrichson/veneer/internal/config"
	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
	"github.com/AnsgarHolmDietrichson/veneer/internal/mapper"
	"github.com/AnsgarHolmDietrichson/veneer/internal/platform"
	"github.com/AnsgarHolmDietrichson/veneer/internal/remote"
	"github.com/AnsgarHolmDietrichson/veneer/internal/state"
)

// MinFreeBytes is the free-space floor required at preflight, before the
// package size is known. A precise check against the fetched blob runs
// after download.
const MinFreeBytes = 50 << 20 // 50 MiB

// Status is the outcome class of an operation, mapped to a process exit
// code by the caller.
type Status int

const (
	// StatusOK means the operation completed with no failures.
	StatusOK Status = 0
	// StatusFailed means a hard failure; for install/update, before any
	// mutation of the installation root unless ErrAppliedUnrecorded says
	// otherwise.
	StatusFailed Status = 1
	// StatusPartial means the operation completed but some files failed;
	// successes were not rolled back.
	StatusPartial Status = 2
)

var (
	// ErrAppliedUnrecorded flags the single most dangerous failure mode:
	// files were applied but the installation record could not be saved.
	// Manual reconciliation is required.
	ErrAppliedUnrecorded = errors.New("files were applied but the installation record could not be saved")

	// ErrAuthorization covers handshake and license refusals.
	ErrAuthorization = errors.New("authorization failed")

	// ErrNotInstalled mirrors the state store's sentinel for callers that
	// only import this package.
	ErrNotInstalled = state.ErrNotInstalled
)

// API is the remote authorize/license/fetch contract consumed by the
// orchestrator. *remote.Client implements it.
type API interface {
	Authorize(ctx context.Context, currentVersion string) (*remote.AuthorizeResponse, error)
	License(ctx context.Context, sessionID, hwid string) (*remote.LicenseResponse, error)
	FetchPackage(ctx context.Context, sessionID, hwid string) ([]byte, error)
}

// Result reports what an operation did.
type Result struct {
	Status  Status
	Version string

	// Applied and Failed partition the manifest's file entries.
	Applied []string
	Failed  []mapper.Failure

	// PostInstall is the manifest's maintenance guidance, threaded
	// through for the caller to surface. Never executed here.
	PostInstall []manifest.Command

	// BundlePath is the pre-update backup bundle, set on updates only.
	BundlePath string

	// NoOp is set when an update found the installation already current.
	NoOp bool
}

// Installer orchestrates operations against one installation root. The
// owner/app identity travels in the explicit Config handed to New, never
// in package-level state.
type Installer struct {
	cfg    *config.Config
	api    API
	logger config.Logger
}

// New creates an installer for the given configuration and remote API.
func New(cfg *config.Config, api API, logger config.Logger) *Installer {
	if logger == nil {
		logger = config.DefaultLogger()
	}
	return &Installer{cfg: cfg, api: api, logger: logger}
}

// Install applies a fresh package. No existing record is required;
// installing over one behaves like an update without the version
// comparison. Partial success still persists a record reflecting only
// what actually succeeded, so a later uninstall never removes files that
// were never installed.
func (in *Installer) Install(ctx context.Context) (*Result, error) {
	if err := in.preflight(ctx); err != nil {
		return nil, err
	}

	operationID := uuid.New().String()
	lock, err := state.AcquireLock(in.cfg.Panel, operationID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	blob, err := in.authorizeAndFetch(ctx, "")
	if err != nil {
		return nil, err
	}

	return in.applyPackage(ctx, operationID, blob)
}

// Update re-applies against a newer package version. A local record must
// exist; its version is offered to the remote handshake, and a "current"
// reply makes the whole operation a no-op. On a version mismatch the
// currently installed files are archived into a dated bundle before any
// new file lands, giving a second recovery path on top of the mapper's
// per-file backups.
func (in *Installer) Update(ctx context.Context) (*Result, error) {
	rec, err := state.Load(in.cfg.Panel)
	if err != nil {
		return nil, fmt.Errorf("update precondition: %w", err)
	}

	if err := in.preflight(ctx); err != nil {
		return nil, err
	}

	operationID := uuid.New().String()
	lock, err := state.AcquireLock(in.cfg.Panel, operationID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	auth, err := in.api.Authorize(ctx, rec.Version)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	if auth.Success {
		in.logger.Info("installation is current", "version", rec.Version)
		return &Result{Status: StatusOK, Version: rec.Version, NoOp: true}, nil
	}
	if !auth.UpdateAvailable() {
		return nil, fmt.Errorf("%w: %s", ErrAuthorization, auth.Message)
	}

	blob, err := in.licenseAndFetch(ctx, auth.SessionID)
	if err != nil {
		return nil, err
	}

	store := in.backupStore()
	bundlePath, err := store.CreateBundle(rec.Version, operationID, rec.Files)
	if err != nil {
		return nil, fmt.Errorf("create pre-update bundle: %w", err)
	}
	in.logger.Info("archived current installation", "bundle", bundlePath)

	result, err := in.applyPackage(ctx, operationID, blob)
	if err != nil {
		return result, err
	}
	result.BundlePath = bundlePath

	if pruneErr := store.PruneBundles(in.cfg.Options.BackupRetention); pruneErr != nil {
		in.logger.Warn("bundle pruning failed", "error", pruneErr)
	}

	return result, nil
}

// Uninstall reverses the recorded installation: recorded targets are
// removed (a missing file is a warning, not fatal) and backups are
// restored best-effort. The record is then rewritten with empty file and
// backup lists rather than deleted, keeping the audit trail of the last
// operation while reporting nothing installed.
func (in *Installer) Uninstall(ctx context.Context) (*Result, error) {
	rec, err := state.Load(in.cfg.Panel)
	if err != nil {
		return nil, fmt.Errorf("uninstall precondition: %w", err)
	}

	operationID := uuid.New().String()
	lock, err := state.AcquireLock(in.cfg.Panel, operationID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	result := &Result{Status: StatusOK, Version: rec.Version}

	for _, f := range rec.Files {
		target := filepath.Join(in.cfg.Panel, filepath.FromSlash(f.Target))
		if err := os.Remove(target); err != nil {
			if os.IsNotExist(err) {
				in.logger.Warn("installed file already missing", "target", f.Target)
				continue
			}
			in.logger.Error("failed to remove installed file", "target", f.Target, "error", err)
			result.Failed = append(result.Failed, mapper.Failure{Target: f.Target, Reason: "remove failed"})
			continue
		}
		result.Applied = append(result.Applied, f.Target)
	}

	store := in.backupStore()
	for _, b := range rec.Backups {
		if err := store.Restore(b); err != nil {
			in.logger.Error("failed to restore backup", "target", b.Target, "error", err)
			result.Failed = append(result.Failed, mapper.Failure{Target: b.Target, Reason: "restore failed"})
		}
	}

	emptied := state.NewRecord(rec.Version, nil, nil)
	if err := state.Save(in.cfg.Panel, emptied); err != nil {
		return result, fmt.Errorf("%w: %v", ErrAppliedUnrecorded, err)
	}

	if len(result.Failed) > 0 {
		result.Status = StatusPartial
	}
	return result, nil
}

// preflight fails before any mutation: root structure, writability, and a
// free-space floor.
func (in *Installer) preflight(ctx context.Context) error {
	if err := platform.CheckInstallRoot(in.cfg.Panel); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if err := platform.CheckFreeSpace(ctx, in.cfg.Panel, MinFreeBytes); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	return nil
}

// hwid resolves the hardware id: a configured pin wins, otherwise the
// local host id, otherwise empty (best-effort; the API treats it as
// optional).
func (in *Installer) hwid(ctx context.Context) string {
	if in.cfg.HWID != "" {
		return in.cfg.HWID
	}
	id, err := platform.HardwareID(ctx)
	if err != nil {
		in.logger.Warn("hardware id unavailable", "error", err)
		return ""
	}
	return id
}

// authorizeAndFetch runs the fresh-install handshake and download.
func (in *Installer) authorizeAndFetch(ctx context.Context, currentVersion string) ([]byte, error) {
	auth, err := in.api.Authorize(ctx, currentVersion)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !auth.Success {
		return nil, fmt.Errorf("%w: %s", ErrAuthorization, auth.Message)
	}
	return in.licenseAndFetch(ctx, auth.SessionID)
}

// licenseAndFetch validates the license for a session and downloads the
// package blob, then checks there is room to land it.
func (in *Installer) licenseAndFetch(ctx context.Context, sessionID string) ([]byte, error) {
	hwid := in.hwid(ctx)

	lic, err := in.api.License(ctx, sessionID, hwid)
	if err != nil {
		return nil, fmt.Errorf("license: %w", err)
	}
	if !lic.Success {
		return nil, fmt.Errorf("%w: %s", ErrAuthorization, lic.Message)
	}

	blob, err := in.api.FetchPackage(ctx, sessionID, hwid)
	if err != nil {
		return nil, fmt.Errorf("fetch package: %w", err)
	}
	in.logger.Debug("package fetched", "bytes", len(blob))

	// Precise free-space check now that the package size is known:
	// extracted contents plus the applied copies.
	if err := platform.CheckFreeSpace(ctx, in.cfg.Panel, uint64(len(blob))*2); err != nil {
		return nil, err
	}

	return blob, nil
}

// applyPackage extracts the blob into a scoped temp dir, validates the
// manifest, maps the files in, and persists the new record.
func (in *Installer) applyPackage(ctx context.Context, operationID string, blob []byte) (*Result, error) {
	packageRoot := filepath.Join(os.TempDir(), "veneer-"+operationID)
	defer os.RemoveAll(packageRoot)

	if err := archive.ExtractBytes(blob, packageRoot); err != nil {
		return nil, fmt.Errorf("extract package: %w", err)
	}

	m, err := manifest.Load(packageRoot)
	if err != nil {
		return nil, err
	}

	policy := mapper.PolicyPermissive
	if in.cfg.Options.StrictChecksums {
		policy = mapper.PolicyStrict
		// Fail-fast before any mutation of the installation root.
		if err := m.ValidateSources(packageRoot); err != nil {
			return nil, err
		}
	}

	store := in.backupStore()
	mp := mapper.New(store, policy, in.logger)

	applied, err := mp.Apply(m.Files, packageRoot, in.cfg.Panel)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Status:      StatusOK,
		Version:     m.Version,
		Applied:     applied.Succeeded,
		Failed:      applied.Failed,
		PostInstall: m.PostInstall,
	}
	if len(applied.Failed) > 0 {
		result.Status = StatusPartial
	}

	if len(applied.Succeeded) == 0 {
		return result, nil
	}

	// Snapshot only what actually landed.
	succeeded := make(map[string]bool, len(applied.Succeeded))
	for _, target := range applied.Succeeded {
		succeeded[target] = true
	}
	var files []manifest.FileEntry
	for _, f := range m.Files {
		if succeeded[f.Target] {
			files = append(files, f)
		}
	}

	rec := state.NewRecord(m.Version, files, applied.Backups)
	if err := state.Save(in.cfg.Panel, rec); err != nil {
		return result, fmt.Errorf("%w: %v", ErrAppliedUnrecorded, err)
	}
	in.logger.Info("installation record saved", "version", m.Version, "files", len(files))

	return result, nil
}

// backupStore builds the backup store rooted at the configured panel.
func (in *Installer) backupStore() *backup.Store {
	return backup.NewStore(in.cfg.Panel, state.Dir(in.cfg.Panel), in.logger)
}
