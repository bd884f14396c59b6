package engine

import (
	"testing"
	"time"

	"github.com/ftahirops/diskmon/model"
)

func newFillScheduler() *Scheduler {
	return &Scheduler{fillPrev: make(map[string]fillSample)}
}

func TestProjectFill(t *testing.T) {
	sch := newFillScheduler()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mounts := []model.FilesystemUsage{{
		Mount:      "/data",
		TotalBytes: 100 << 30,
		UsedBytes:  50 << 30,
		AvailBytes: 50 << 30,
	}}

	// First sample: no projection yet.
	sch.projectFill(mounts, t0)
	if mounts[0].FillRateBps != 0 || mounts[0].DaysUntilFull != 0 {
		t.Fatalf("first sample produced a projection: %+v", mounts[0])
	}

	// One GiB written over 1000 seconds.
	mounts = []model.FilesystemUsage{{
		Mount:      "/data",
		TotalBytes: 100 << 30,
		UsedBytes:  51 << 30,
		AvailBytes: 49 << 30,
	}}
	sch.projectFill(mounts, t0.Add(1000*time.Second))

	wantRate := float64(1<<30) / 1000
	if mounts[0].FillRateBps != wantRate {
		t.Fatalf("rate = %v, want %v", mounts[0].FillRateBps, wantRate)
	}
	wantDays := float64(49<<30) / wantRate / 86400
	if diff := mounts[0].DaysUntilFull - wantDays; diff > 0.001 || diff < -0.001 {
		t.Fatalf("days = %v, want %v", mounts[0].DaysUntilFull, wantDays)
	}
}

func TestProjectFillClearsOnShrink(t *testing.T) {
	sch := newFillScheduler()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sch.projectFill([]model.FilesystemUsage{{Mount: "/data", UsedBytes: 60 << 30, AvailBytes: 40 << 30}}, t0)

	// Usage went down: no projection.
	mounts := []model.FilesystemUsage{{Mount: "/data", UsedBytes: 55 << 30, AvailBytes: 45 << 30}}
	sch.projectFill(mounts, t0.Add(time.Minute))
	if mounts[0].FillRateBps != 0 || mounts[0].DaysUntilFull != 0 {
		t.Fatalf("shrinking usage produced a projection: %+v", mounts[0])
	}
}

func TestProjectFillForgetsUnmounted(t *testing.T) {
	sch := newFillScheduler()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sch.projectFill([]model.FilesystemUsage{{Mount: "/gone", UsedBytes: 1 << 30}}, t0)
	sch.projectFill([]model.FilesystemUsage{{Mount: "/data", UsedBytes: 1 << 30}}, t0.Add(time.Minute))

	if _, ok := sch.fillPrev["/gone"]; ok {
		t.Fatal("state for unmounted filesystem retained")
	}
}
