package collector

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/util"
)

const mdstatPath = "/proc/mdstat"

// Volumes reads volume-manager status: software RAID from /proc/mdstat, LVM
// via vgs, ZFS via zpool. Each source is optional; a host with none of them
// yields an empty status.
type Volumes struct{}

// Volumes returns the combined volume-manager status.
func (v *Volumes) Volumes(ctx context.Context) (*model.VolumeStatus, error) {
	status := &model.VolumeStatus{Timestamp: time.Now()}
	found := false

	if raid, ok := collectMdstat(); ok {
		status.Raid = raid
		found = true
	}
	if lvm, ok := collectLVM(ctx); ok {
		status.LVM = lvm
		found = true
	}
	if zfs, ok := collectZFS(ctx); ok {
		status.ZFS = zfs
		found = true
	}
	if !found {
		return nil, provider.Unavailablef("no volume managers present")
	}
	return status, ctx.Err()
}

// collectMdstat parses /proc/mdstat. Example:
//
//	md0 : active raid1 sda1[0] sdb1[1]
//	      1953381376 blocks super 1.2 [2/2] [UU]
//	      [=>...........]  recovery =  9.2% (...)
func collectMdstat() ([]model.RaidArray, bool) {
	lines, err := util.ReadFileLines(mdstatPath)
	if err != nil {
		return nil, false
	}

	var arrays []model.RaidArray
	var cur *model.RaidArray
	flush := func() {
		if cur != nil {
			arrays = append(arrays, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 4 && strings.HasPrefix(fields[0], "md") && fields[1] == ":" {
			flush()
			cur = &model.RaidArray{
				Name:  fields[0],
				State: fields[2],
				Level: fields[3],
			}
			for _, f := range fields[4:] {
				// members look like "sda1[0]" or "sdb1[1](F)"
				if idx := strings.Index(f, "["); idx > 0 {
					cur.Members = append(cur.Members, f[:idx])
				}
			}
			continue
		}
		if cur == nil {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, " blocks ") || strings.HasSuffix(trimmed, " blocks") {
			cur.CapacityBytes = util.ParseUint64(util.FieldsAt(trimmed, 0)) * 1024
			// "[2/2] [UU]" -> degraded when any member slot shows "_"
			if idx := strings.LastIndex(trimmed, "["); idx >= 0 {
				cur.Degraded = strings.Contains(trimmed[idx:], "_")
			}
		}
		if idx := strings.Index(trimmed, "recovery ="); idx >= 0 {
			cur.RebuildPct = util.ParseFloat64(strings.TrimSuffix(util.FieldsAt(trimmed[idx:], 2), "%"))
		}
	}
	flush()
	return arrays, arrays != nil || fileExists(mdstatPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// collectLVM shells out to vgs with machine-readable output.
func collectLVM(ctx context.Context) ([]model.VolumeGroup, bool) {
	bin, err := exec.LookPath("vgs")
	if err != nil {
		return nil, false
	}
	out, err := exec.CommandContext(ctx, bin,
		"--noheadings", "--units", "b", "--nosuffix", "--separator", "|",
		"-o", "vg_name,vg_size,vg_free,pv_count,lv_count").Output()
	if err != nil {
		return nil, false
	}

	var groups []model.VolumeGroup
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "|")
		if len(parts) < 5 || parts[0] == "" {
			continue
		}
		groups = append(groups, model.VolumeGroup{
			Name:      parts[0],
			SizeBytes: util.ParseUint64(parts[1]),
			FreeBytes: util.ParseUint64(parts[2]),
			PVCount:   int(util.ParseUint64(parts[3])),
			LVCount:   int(util.ParseUint64(parts[4])),
		})
	}
	return groups, true
}

// collectZFS shells out to zpool with parsable output.
func collectZFS(ctx context.Context) ([]model.ZfsPool, bool) {
	bin, err := exec.LookPath("zpool")
	if err != nil {
		return nil, false
	}
	out, err := exec.CommandContext(ctx, bin,
		"list", "-Hp", "-o", "name,size,alloc,free,health").Output()
	if err != nil {
		return nil, false
	}

	var pools []model.ZfsPool
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		pools = append(pools, model.ZfsPool{
			Name:       fields[0],
			SizeBytes:  util.ParseUint64(fields[1]),
			AllocBytes: util.ParseUint64(fields[2]),
			FreeBytes:  util.ParseUint64(fields[3]),
			Health:     fields[4],
		})
	}
	return pools, true
}
