package engine

import (
	"sync"
	"time"

	"github.com/ftahirops/diskmon/model"
)

// nvmeMediaErrorID is the sentinel attribute ID for NVMe media errors in the
// anomaly log (NVMe health fields have no ATA attribute numbers).
const nvmeMediaErrorID = 9999

// watchedAttrs are the ATA attributes whose raw value going non-zero, or
// moving after first detection, is treated as an anomaly.
var watchedAttrs = map[uint32]bool{
	attrReallocated:   true,
	attrPending:       true,
	attrUncorrectable: true,
	attrCRCErrors:     true,
}

// AnomalyDetector compares each SMART poll against the device's tracked
// first-seen values. Records never auto-expire; they persist until the user
// clears them.
type AnomalyDetector struct {
	mu  sync.Mutex
	log model.AnomalyLog
}

// NewAnomalyDetector creates a detector seeded from a persisted log.
func NewAnomalyDetector(seed model.AnomalyLog) *AnomalyDetector {
	if seed == nil {
		seed = make(model.AnomalyLog)
	}
	return &AnomalyDetector{log: seed}
}

// Update inspects a new SMART snapshot and records anomalies. It returns
// whether the log changed (caller persists on change).
func (d *AnomalyDetector) Update(device string, smart *model.SmartSnapshot, now time.Time) bool {
	if smart == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	dev := d.log[device]
	if dev == nil {
		dev = make(model.DeviceAnomalies)
	}
	changed := false

	record := func(id uint32, name string, raw uint64) {
		if raw == 0 {
			return
		}
		if rec, ok := dev[id]; ok {
			if raw != rec.LastValue {
				rec.LastValue = raw
				dev[id] = rec
				changed = true
			}
			return
		}
		dev[id] = model.AnomalyRecord{
			AttrID:     id,
			AttrName:   name,
			FirstSeen:  now,
			FirstValue: raw,
			LastValue:  raw,
		}
		changed = true
	}

	for _, attr := range smart.Attributes {
		if watchedAttrs[attr.ID] {
			record(attr.ID, attr.Name, attr.RawValue)
		}
	}
	if n := smart.Nvme; n != nil {
		record(nvmeMediaErrorID, "NVMe Media Errors", n.MediaErrors)
	}

	if changed {
		d.log[device] = dev
	}
	return changed
}

// Snapshot returns a deep copy of the anomaly log.
func (d *AnomalyDetector) Snapshot() model.AnomalyLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(model.AnomalyLog, len(d.log))
	for dev, anomalies := range d.log {
		cp := make(model.DeviceAnomalies, len(anomalies))
		for id, rec := range anomalies {
			cp[id] = rec
		}
		out[dev] = cp
	}
	return out
}

// Clear removes all records for one device. Returns whether anything was
// removed.
func (d *AnomalyDetector) Clear(device string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.log[device]; !ok {
		return false
	}
	delete(d.log, device)
	return true
}

// ClearAll removes every record. Returns whether anything was removed.
func (d *AnomalyDetector) ClearAll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.log) == 0 {
		return false
	}
	d.log = make(model.AnomalyLog)
	return true
}
