package collector

import (
	"context"
	"strings"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/util"
)

const mountstatsPath = "/proc/self/mountstats"

// Mountstats reads per-mount NFS statistics from /proc/self/mountstats.
type Mountstats struct{}

// NFSMounts returns latency statistics for every NFS mount. Hosts with no
// NFS mounts return an empty list, not an error.
func (m *Mountstats) NFSMounts(ctx context.Context) ([]model.NFSMount, error) {
	lines, err := util.ReadFileLines(mountstatsPath)
	if err != nil {
		return nil, provider.Unavailablef("read %s: %v", mountstatsPath, err)
	}

	var mounts []model.NFSMount
	var cur *model.NFSMount
	flush := func() {
		if cur != nil {
			mounts = append(mounts, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)

		// "device fs:/export mounted on /mnt with fstype nfs4 statvers=1.1"
		if strings.HasPrefix(trimmed, "device ") {
			flush()
			fields := strings.Fields(trimmed)
			if len(fields) < 8 || !strings.HasPrefix(fields[7], "nfs") {
				continue
			}
			cur = &model.NFSMount{
				Device: fields[1],
				Mount:  fields[4],
				FsType: fields[7],
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "age:"):
			cur.AgeSecs = util.ParseUint64(util.FieldsAt(trimmed, 1))
		case strings.HasPrefix(trimmed, "bytes:"):
			// fields 5 and 6 are server read/write byte totals
			cur.ServerBytesRead = util.ParseUint64(util.FieldsAt(trimmed, 5))
			cur.ServerBytesWritten = util.ParseUint64(util.FieldsAt(trimmed, 6))
		case strings.HasPrefix(trimmed, "READ:"):
			ops, rtt := parseOpLine(trimmed)
			cur.ReadOps = ops
			cur.ReadRTTMs = rtt
		case strings.HasPrefix(trimmed, "WRITE:"):
			ops, rtt := parseOpLine(trimmed)
			cur.WriteOps = ops
			cur.WriteRTTMs = rtt
		}
	}
	flush()
	return mounts, nil
}

// parseOpLine extracts (ops, avg RTT ms) from a per-op statistics line:
// "READ: ops trans timeouts bytes_sent bytes_recv queue_ms rtt_ms exec_ms".
func parseOpLine(line string) (ops uint64, avgRTTMs float64) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return 0, 0
	}
	ops = util.ParseUint64(fields[1])
	rttTotal := util.ParseFloat64(fields[7])
	if ops > 0 {
		avgRTTMs = rttTotal / float64(ops)
	}
	return ops, avgRTTMs
}
