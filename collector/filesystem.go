package collector

import (
	"context"
	"strings"
	"syscall"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/util"
)

// pseudoFS lists filesystem types to skip (not real block-backed filesystems).
var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "tmpfs": true,
	"cgroup": true, "cgroup2": true, "debugfs": true, "tracefs": true,
	"securityfs": true, "hugetlbfs": true, "mqueue": true, "fusectl": true,
	"configfs": true, "pstore": true, "bpf": true, "ramfs": true,
	"rpc_pipefs": true, "nsfs": true, "autofs": true, "efivarfs": true,
	"squashfs": true, "iso9660": true, "devpts": true, "overlay": true,
}

// Filesystems reads /proc/mounts and calls statfs per real mount.
type Filesystems struct{}

// Filesystems returns usage for every block-backed mount, deduplicated by
// device.
func (f *Filesystems) Filesystems(ctx context.Context) ([]model.FilesystemUsage, error) {
	lines, err := util.ReadFileLines("/proc/mounts")
	if err != nil {
		return nil, provider.Unavailablef("read /proc/mounts: %v", err)
	}

	seen := make(map[string]bool)
	var mounts []model.FilesystemUsage
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		dev, mountPoint, fsType := fields[0], fields[1], fields[2]

		if pseudoFS[fsType] || !strings.HasPrefix(dev, "/") || seen[dev] {
			continue
		}
		seen[dev] = true

		var stat syscall.Statfs_t
		if err := syscall.Statfs(mountPoint, &stat); err != nil {
			continue
		}

		bsize := uint64(stat.Bsize)
		total := stat.Blocks * bsize
		mounts = append(mounts, model.FilesystemUsage{
			Device:      dev,
			Mount:       mountPoint,
			FsType:      fsType,
			TotalBytes:  total,
			UsedBytes:   total - stat.Bfree*bsize,
			AvailBytes:  stat.Bavail * bsize,
			TotalInodes: stat.Files,
			FreeInodes:  stat.Ffree,
		})
	}
	return mounts, nil
}
