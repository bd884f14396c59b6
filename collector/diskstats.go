package collector

import (
	"context"
	"strings"
	"time"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/util"
)

const diskstatsPath = "/proc/diskstats"

// diskstatLine is one raw /proc/diskstats row for a whole device.
type diskstatLine struct {
	reads         uint64
	readsMerged   uint64
	sectorsRead   uint64
	readTimeMs    uint64
	writes        uint64
	writesMerged  uint64
	sectorsWrite  uint64
	writeTimeMs   uint64
	iosInProgress uint64
	ioTimeMs      uint64
}

// Diskstats derives per-second I/O rates from successive /proc/diskstats
// samples. The first call after start returns zero rates.
type Diskstats struct {
	prev   map[string]diskstatLine
	prevAt time.Time
}

// NewDiskstats creates the diskstats-backed I/O provider.
func NewDiskstats() *Diskstats {
	return &Diskstats{prev: make(map[string]diskstatLine)}
}

// IOCounters reads the current counters and returns derived rates for every
// whole block device.
func (d *Diskstats) IOCounters(ctx context.Context) (map[string]model.IOCounters, error) {
	lines, err := util.ReadFileLines(diskstatsPath)
	if err != nil {
		return nil, provider.Unavailablef("read %s: %v", diskstatsPath, err)
	}
	now := time.Now()
	dt := now.Sub(d.prevAt)

	cur := make(map[string]diskstatLine)
	out := make(map[string]model.IOCounters)
	for _, line := range lines {
		name, ds, ok := parseDiskstatLine(line)
		if !ok || !isWholeDisk(name) {
			continue
		}
		cur[name] = ds

		prev, seen := d.prev[name]
		if !seen || dt <= 0 {
			continue
		}
		c := model.IOCounters{
			Timestamp:        now,
			ReadBytesPerSec:  util.Rate(prev.sectorsRead, ds.sectorsRead, dt) * 512,
			WriteBytesPerSec: util.Rate(prev.sectorsWrite, ds.sectorsWrite, dt) * 512,
			ReadIOPS:         util.Rate(prev.reads, ds.reads, dt),
			WriteIOPS:        util.Rate(prev.writes, ds.writes, dt),
		}
		// io_time counts milliseconds the device was busy.
		busy := util.Rate(prev.ioTimeMs, ds.ioTimeMs, dt) / 10 // ms/s -> pct
		if busy > 100 {
			busy = 100
		}
		c.UtilPct = busy

		if dr := util.Delta(prev.reads, ds.reads); dr > 0 {
			c.AvgReadLatMs = float64(util.Delta(prev.readTimeMs, ds.readTimeMs)) / float64(dr)
		}
		if dw := util.Delta(prev.writes, ds.writes); dw > 0 {
			c.AvgWriteLatMs = float64(util.Delta(prev.writeTimeMs, ds.writeTimeMs)) / float64(dw)
		}
		out[name] = c
	}

	d.prev = cur
	d.prevAt = now
	return out, ctx.Err()
}

// parseDiskstatLine parses one /proc/diskstats row.
// Format: major minor name reads_completed reads_merged sectors_read read_time
//
//	writes_completed writes_merged sectors_written write_time
//	ios_in_progress io_time weighted_io_time
func parseDiskstatLine(line string) (string, diskstatLine, bool) {
	fields := strings.Fields(line)
	if len(fields) < 14 {
		return "", diskstatLine{}, false
	}
	return fields[2], diskstatLine{
		reads:         util.ParseUint64(fields[3]),
		readsMerged:   util.ParseUint64(fields[4]),
		sectorsRead:   util.ParseUint64(fields[5]),
		readTimeMs:    util.ParseUint64(fields[6]),
		writes:        util.ParseUint64(fields[7]),
		writesMerged:  util.ParseUint64(fields[8]),
		sectorsWrite:  util.ParseUint64(fields[9]),
		writeTimeMs:   util.ParseUint64(fields[10]),
		iosInProgress: util.ParseUint64(fields[11]),
		ioTimeMs:      util.ParseUint64(fields[12]),
	}, true
}

// isWholeDisk reports whether the name is a whole device rather than a
// partition.
func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
		return false
	}
	// NVMe: nvme0n1 is a disk, nvme0n1p1 is a partition.
	if strings.HasPrefix(name, "nvme") {
		return !strings.Contains(name[4:], "p")
	}
	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			return len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z'
		}
	}
	if strings.HasPrefix(name, "md") || strings.HasPrefix(name, "dm-") {
		return true
	}
	return false
}
