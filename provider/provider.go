// Package provider defines the raw-data provider interfaces the monitoring
// core polls. Implementations live outside the core (smartctl wrappers,
// procfs readers, test fixtures); the core depends only on these shapes.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ftahirops/diskmon/model"
)

// ErrUnavailable marks a domain whose external tool or driver is missing or
// failed. The scheduler degrades that domain to stale data; it never aborts
// monitoring of other domains.
var ErrUnavailable = errors.New("provider unavailable")

// Unavailablef wraps ErrUnavailable with context.
func Unavailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnavailable)...)
}

// IsUnavailable reports whether err denotes a missing provider.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// DeviceLister enumerates the block devices currently present. The scheduler
// diffs successive listings to detect hotplug add/remove.
type DeviceLister interface {
	Devices(ctx context.Context) ([]model.Device, error)
}

// SMART supplies one parsed SMART snapshot per device.
type SMART interface {
	Smart(ctx context.Context, device string) (*model.SmartSnapshot, error)
}

// IO supplies pre-derived I/O rates for all devices in one call.
type IO interface {
	IOCounters(ctx context.Context) (map[string]model.IOCounters, error)
}

// Filesystem supplies usage for all mounted filesystems.
type Filesystem interface {
	Filesystems(ctx context.Context) ([]model.FilesystemUsage, error)
}

// NFS supplies per-mount NFS latency statistics.
type NFS interface {
	NFSMounts(ctx context.Context) ([]model.NFSMount, error)
}

// Volume supplies volume-manager status (RAID/LVM/ZFS).
type Volume interface {
	Volumes(ctx context.Context) (*model.VolumeStatus, error)
}

// SelfTest starts and tracks drive self-tests.
type SelfTest interface {
	// StartSelfTest issues a short or long test. It returns ErrUnavailable
	// when the tool is missing and a plain error when the drive refused.
	StartSelfTest(ctx context.Context, device string, kind model.SelfTestKind) error
	// SelfTestStatus reports progress of the running test, or the terminal
	// outcome of the last completed one.
	SelfTestStatus(ctx context.Context, device string) (model.SelfTestStatus, error)
	// SelfTestLog returns the device's self-test log, most recent last.
	SelfTestLog(ctx context.Context, device string) ([]model.SelfTestEntry, error)
}

// Set bundles every provider domain handed to the engine. Nil fields mark
// domains with no provider; the scheduler skips them.
type Set struct {
	Lister     DeviceLister
	SMART      SMART
	IO         IO
	Filesystem Filesystem
	NFS        NFS
	Volume     Volume
	SelfTest   SelfTest
}
