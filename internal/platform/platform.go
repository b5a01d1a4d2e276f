// Package platform provides the host facts the orchestrator needs before
// touching an installation root: a stable hardware id for licensing and
// free-space/writability preflight checks.
//
// It uses gopsutil for host and disk information and provides graceful
// fallback behavior where detection is best-effort.
package platform

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
)

// HardwareID returns a stable identifier for this machine, used as the
// HWID sent to the licensing API when the config does not pin one.
func HardwareID(ctx context.Context) (string, error) {
	id, err := host.HostIDWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("detect hardware id: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("hardware id unavailable")
	}
	return id, nil
}

// CheckFreeSpace verifies the partition holding path has at least need
// bytes free.
func CheckFreeSpace(ctx context.Context, path string, need uint64) error {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("check disk usage: %w", err)
	}

	if usage.Free < need {
		return fmt.Errorf("insufficient free space on %s: need %d bytes, have %d", path, need, usage.Free)
	}

	return nil
}

// CheckInstallRoot verifies the installation root exists, is a directory,
// and is writable. Writability is probed with a throwaway file because
// permission bits alone don't account for read-only mounts or ACLs.
func CheckInstallRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("installation root does not exist: %s", root)
		}
		return fmt.Errorf("stat installation root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("installation root is not a directory: %s", root)
	}

	probe, err := os.CreateTemp(root, ".veneer-probe-*")
	if err != nil {
		return fmt.Errorf("installation root is not writable: %w", err)
	}
	probePath := probe.Name()
	probe.Close()
	os.Remove(probePath)

	return nil
}
