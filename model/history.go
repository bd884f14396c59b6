package model

import "time"

// HealthPointCapacity is the fixed capacity of the per-device health history
// ring: one point per 5-minute SMART cycle, 2160 points = 7.5 days.
const HealthPointCapacity = 2160

// HealthPoint is one sampled health score.
type HealthPoint struct {
	Timestamp time.Time `json:"ts"`
	Score     int       `json:"score"`
}

// AnomalyRecord tracks one attribute that deviated from its baseline-zero or
// historical value on one device. Records persist until explicitly cleared.
type AnomalyRecord struct {
	AttrID     uint32    `json:"attr_id"`
	AttrName   string    `json:"attr_name"`
	FirstSeen  time.Time `json:"first_seen"`
	FirstValue uint64    `json:"first_value"`
	LastValue  uint64    `json:"last_value"`
}

// DeviceAnomalies maps attribute ID to its record for one device.
type DeviceAnomalies map[uint32]AnomalyRecord

// AnomalyLog maps device name to its anomalies; persisted whole.
type AnomalyLog map[string]DeviceAnomalies

// BaselineAttr is one attribute captured in a baseline.
type BaselineAttr struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	RawValue uint64 `json:"raw_value"`
	Value    uint16 `json:"value"`
}

// Baseline is a named, user-triggered copy of a SMART snapshot. Immutable
// once saved; used only as a diff reference.
type Baseline struct {
	Device       string         `json:"device"`
	SavedAt      time.Time      `json:"saved_at"`
	PowerOnHours uint64         `json:"power_on_hours"`
	Attributes   []BaselineAttr `json:"attributes"`
}

// AttrDelta returns (baseline raw, delta vs current) for an attribute, and
// whether the baseline recorded it at all.
func (b *Baseline) AttrDelta(id uint32, currentRaw uint64) (base uint64, delta int64, ok bool) {
	for _, a := range b.Attributes {
		if a.ID == id {
			return a.RawValue, int64(currentRaw) - int64(a.RawValue), true
		}
	}
	return 0, 0, false
}

// NewBaseline captures a baseline from a SMART snapshot.
func NewBaseline(device string, smart *SmartSnapshot, now time.Time) Baseline {
	attrs := make([]BaselineAttr, 0, len(smart.Attributes))
	for _, a := range smart.Attributes {
		attrs = append(attrs, BaselineAttr{ID: a.ID, Name: a.Name, RawValue: a.RawValue, Value: a.Value})
	}
	return Baseline{
		Device:       device,
		SavedAt:      now,
		PowerOnHours: smart.PowerOnHours,
		Attributes:   attrs,
	}
}

// DeviceEndurance accumulates an estimate of total bytes written to a device
// since tracking began.
type DeviceEndurance struct {
	TotalBytesWritten uint64    `json:"total_bytes_written"`
	FirstTrackedAt    time.Time `json:"first_tracked_at"`
}

// DailyAvg returns the average bytes written per day and the days tracked.
func (e DeviceEndurance) DailyAvg(now time.Time) (bytesPerDay float64, daysTracked float64) {
	secs := now.Sub(e.FirstTrackedAt).Seconds()
	if secs < 1 {
		secs = 1
	}
	daysTracked = secs / 86400
	return float64(e.TotalBytesWritten) / daysTracked, daysTracked
}

// EnduranceMap maps device name to its endurance counter; persisted whole.
type EnduranceMap map[string]DeviceEndurance
