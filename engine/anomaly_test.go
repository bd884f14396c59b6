package engine

import (
	"testing"
	"time"

	"github.com/ftahirops/diskmon/model"
)

func snapWithAttr(id uint32, raw uint64) *model.SmartSnapshot {
	return &model.SmartSnapshot{
		Status:     model.SmartPassed,
		Attributes: []model.SmartAttribute{{ID: id, Name: "attr", RawValue: raw}},
	}
}

func TestAnomalyDetectorRecordsFirstSeen(t *testing.T) {
	d := NewAnomalyDetector(nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if changed := d.Update("sda", snapWithAttr(attrPending, 0), t0); changed {
		t.Fatal("zero raw value must not record an anomaly")
	}
	if !d.Update("sda", snapWithAttr(attrPending, 3), t0) {
		t.Fatal("non-zero watched attribute must record")
	}

	rec := d.Snapshot()["sda"][attrPending]
	if rec.FirstValue != 3 || rec.LastValue != 3 || !rec.FirstSeen.Equal(t0) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Same value again: no change.
	if d.Update("sda", snapWithAttr(attrPending, 3), t0.Add(time.Hour)) {
		t.Fatal("unchanged value must not report change")
	}

	// Growth updates LastValue, keeps FirstSeen.
	if !d.Update("sda", snapWithAttr(attrPending, 7), t0.Add(2*time.Hour)) {
		t.Fatal("grown value must report change")
	}
	rec = d.Snapshot()["sda"][attrPending]
	if rec.FirstValue != 3 || rec.LastValue != 7 || !rec.FirstSeen.Equal(t0) {
		t.Fatalf("record after growth: %+v", rec)
	}
}

func TestAnomalyDetectorIgnoresUnwatchedAttrs(t *testing.T) {
	d := NewAnomalyDetector(nil)
	if d.Update("sda", snapWithAttr(attrPowerOnHours, 12345), time.Now()) {
		t.Fatal("power-on hours is not a watched attribute")
	}
}

func TestAnomalyDetectorNvmeMediaErrors(t *testing.T) {
	d := NewAnomalyDetector(nil)
	snap := &model.SmartSnapshot{
		Status: model.SmartPassed,
		Nvme:   &model.NvmeHealth{MediaErrors: 2},
	}
	if !d.Update("nvme0n1", snap, time.Now()) {
		t.Fatal("NVMe media errors must record")
	}
	if _, ok := d.Snapshot()["nvme0n1"][nvmeMediaErrorID]; !ok {
		t.Fatal("missing NVMe sentinel record")
	}
}

func TestAnomalyDetectorClear(t *testing.T) {
	seed := model.AnomalyLog{
		"sda": {attrPending: {AttrID: attrPending, FirstValue: 1, LastValue: 1}},
		"sdb": {attrCRCErrors: {AttrID: attrCRCErrors, FirstValue: 2, LastValue: 2}},
	}
	d := NewAnomalyDetector(seed)

	if !d.Clear("sda") {
		t.Fatal("clearing an existing device must report change")
	}
	if d.Clear("sda") {
		t.Fatal("clearing twice must not report change")
	}
	if len(d.Snapshot()) != 1 {
		t.Fatalf("expected one device left, got %d", len(d.Snapshot()))
	}
	if !d.ClearAll() {
		t.Fatal("ClearAll with records must report change")
	}
	if d.ClearAll() {
		t.Fatal("ClearAll on empty log must not report change")
	}
}

func TestAnomalySnapshotIsACopy(t *testing.T) {
	d := NewAnomalyDetector(nil)
	d.Update("sda", snapWithAttr(attrReallocated, 1), time.Now())

	snap := d.Snapshot()
	delete(snap, "sda")
	if len(d.Snapshot()) != 1 {
		t.Fatal("mutating a snapshot must not affect the detector")
	}
}
