package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/util"
)

const sysBlock = "/sys/block"

// SysfsLister enumerates block devices from /sys/block. Partitions never
// appear there, so no partition filtering is needed.
type SysfsLister struct{}

// Devices returns the currently present block devices with identity read
// from sysfs.
func (l *SysfsLister) Devices(ctx context.Context) ([]model.Device, error) {
	entries, err := os.ReadDir(sysBlock)
	if err != nil {
		return nil, provider.Unavailablef("read %s: %v", sysBlock, err)
	}

	var devices []model.Device
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		dev := model.Device{Name: name}

		base := filepath.Join(sysBlock, name)
		if s, err := util.ReadFileString(filepath.Join(base, "queue", "rotational")); err == nil {
			dev.Rotational = s == "1"
		}
		if s, err := util.ReadFileString(filepath.Join(base, "size")); err == nil {
			dev.CapacityBytes = util.ParseUint64(s) * 512
		}
		if s, err := util.ReadFileString(filepath.Join(base, "device", "model")); err == nil {
			dev.Model = s
		}
		if s, err := util.ReadFileString(filepath.Join(base, "device", "serial")); err == nil {
			dev.Serial = s
		}
		dev.Transport = transportOf(name, base)
		dev.InferKind()
		devices = append(devices, dev)
	}
	return devices, nil
}

// transportOf derives the transport from the device name and the sysfs
// device path.
func transportOf(name, base string) string {
	if strings.HasPrefix(name, "nvme") {
		return "nvme"
	}
	// The resolved device path reveals the bus: .../ata1/... or .../usb1/...
	if target, err := os.Readlink(filepath.Join(base, "device")); err == nil {
		switch {
		case strings.Contains(target, "/ata"):
			return "sata"
		case strings.Contains(target, "/usb"):
			return "usb"
		case strings.Contains(target, "/virtio"):
			return "virtio"
		}
	}
	if strings.HasPrefix(name, "sd") {
		return "scsi"
	}
	return ""
}

// DevicePath returns the /dev node for a sysfs block name.
func DevicePath(name string) string {
	return fmt.Sprintf("/dev/%s", name)
}
