package model

import "time"

// IOCounters is one point-in-time I/O reading for a device. Rates are
// pre-derived by the provider; the core never re-parses counters.
type IOCounters struct {
	Timestamp        time.Time `json:"timestamp"`
	ReadBytesPerSec  float64   `json:"read_bps"`
	WriteBytesPerSec float64   `json:"write_bps"`
	ReadIOPS         float64   `json:"read_iops"`
	WriteIOPS        float64   `json:"write_iops"`
	UtilPct          float64   `json:"util_pct"`
	AvgReadLatMs     float64   `json:"avg_read_lat_ms"`
	AvgWriteLatMs    float64   `json:"avg_write_lat_ms"`
}

// MaxLatencyMs returns the worse of the read/write average latencies.
func (c IOCounters) MaxLatencyMs() float64 {
	if c.AvgReadLatMs > c.AvgWriteLatMs {
		return c.AvgReadLatMs
	}
	return c.AvgWriteLatMs
}

// FilesystemUsage is one mounted filesystem with usage and fill projection.
type FilesystemUsage struct {
	Device      string `json:"device"`
	Mount       string `json:"mount"`
	FsType      string `json:"fs_type"`
	TotalBytes  uint64 `json:"total_bytes"`
	UsedBytes   uint64 `json:"used_bytes"`
	AvailBytes  uint64 `json:"avail_bytes"`
	TotalInodes uint64 `json:"total_inodes"`
	FreeInodes  uint64 `json:"free_inodes"`

	// Fill projection; zero values mean "not enough samples yet".
	FillRateBps   float64 `json:"fill_rate_bps,omitempty"`
	DaysUntilFull float64 `json:"days_until_full,omitempty"`
}

// UsePct returns used space as a percentage of total.
func (f FilesystemUsage) UsePct() float64 {
	if f.TotalBytes == 0 {
		return 0
	}
	return float64(f.TotalBytes-f.AvailBytes) / float64(f.TotalBytes) * 100
}

// InodePct returns used inodes as a percentage of total.
func (f FilesystemUsage) InodePct() float64 {
	if f.TotalInodes == 0 {
		return 0
	}
	return float64(f.TotalInodes-f.FreeInodes) / float64(f.TotalInodes) * 100
}

// NFSMount is one NFS mount with per-op round-trip latency.
type NFSMount struct {
	Device             string  `json:"device"` // "server:/export"
	Mount              string  `json:"mount"`
	FsType             string  `json:"fs_type"`
	AgeSecs            uint64  `json:"age_secs"`
	ReadOps            uint64  `json:"read_ops"`
	WriteOps           uint64  `json:"write_ops"`
	ReadRTTMs          float64 `json:"read_rtt_ms"`
	WriteRTTMs         float64 `json:"write_rtt_ms"`
	ServerBytesRead    uint64  `json:"server_bytes_read"`
	ServerBytesWritten uint64  `json:"server_bytes_written"`
}

// MaxRTTMs returns the worse of the read/write average RTTs.
func (n NFSMount) MaxRTTMs() float64 {
	if n.ReadRTTMs > n.WriteRTTMs {
		return n.ReadRTTMs
	}
	return n.WriteRTTMs
}

// RaidArray is one software RAID array.
type RaidArray struct {
	Name          string   `json:"name"`
	State         string   `json:"state"`
	Level         string   `json:"level"`
	Members       []string `json:"members,omitempty"`
	CapacityBytes uint64   `json:"capacity_bytes"`
	Degraded      bool     `json:"degraded"`
	RebuildPct    float64  `json:"rebuild_pct,omitempty"`
}

// VolumeGroup is one LVM volume group.
type VolumeGroup struct {
	Name      string `json:"name"`
	SizeBytes uint64 `json:"size_bytes"`
	FreeBytes uint64 `json:"free_bytes"`
	PVCount   int    `json:"pv_count"`
	LVCount   int    `json:"lv_count"`
}

// ZfsPool is one ZFS pool.
type ZfsPool struct {
	Name        string `json:"name"`
	SizeBytes   uint64 `json:"size_bytes"`
	AllocBytes  uint64 `json:"alloc_bytes"`
	FreeBytes   uint64 `json:"free_bytes"`
	Health      string `json:"health"` // "ONLINE", "DEGRADED", ...
	ScrubStatus string `json:"scrub_status,omitempty"`
}

// Healthy reports whether the pool is fully online.
func (z ZfsPool) Healthy() bool { return z.Health == "ONLINE" }

// VolumeStatus groups all volume-manager readings from one poll.
type VolumeStatus struct {
	Timestamp time.Time     `json:"timestamp"`
	Raid      []RaidArray   `json:"raid,omitempty"`
	LVM       []VolumeGroup `json:"lvm,omitempty"`
	ZFS       []ZfsPool     `json:"zfs,omitempty"`
}
