package store

import (
	"testing"
	"time"

	"github.com/ftahirops/diskmon/model"
)

func newSnap(temp int) *model.SmartSnapshot {
	return &model.SmartSnapshot{
		Timestamp:   time.Now(),
		Status:      model.SmartPassed,
		Temperature: temp,
		HasTemp:     true,
	}
}

func TestMergeSmartFiresHooksInOrder(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})

	var calls []string
	s.SetHooks(Hooks{
		OnSmartMerge: func(device string) {
			calls = append(calls, "smart:"+device)
			// Hooks must be able to read the committed snapshot back.
			st, ok := s.Snapshot(device)
			if !ok || st.Smart == nil {
				t.Error("OnSmartMerge ran before the snapshot was committed")
			}
		},
		OnMerge: func(domain Domain, subject string) {
			calls = append(calls, domain.String()+":"+subject)
		},
	})

	s.MergeSmart("sda", newSnap(30))
	if len(calls) != 2 || calls[0] != "smart:sda" || calls[1] != "smart:sda" {
		t.Fatalf("hook order: %v", calls)
	}
}

func TestMergeSmartKeepsPrevious(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})

	first := newSnap(30)
	second := newSnap(35)
	s.MergeSmart("sda", first)
	s.MergeSmart("sda", second)

	st, _ := s.Snapshot("sda")
	if st.Smart != second || st.SmartPrev != first {
		t.Fatal("previous snapshot not retained on merge")
	}
}

func TestStaleMarkKeepsLastKnownGood(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})
	s.MergeSmart("sda", newSnap(30))

	s.MarkSmartStale("sda")
	st, _ := s.Snapshot("sda")
	if !st.SmartStale || st.Smart == nil {
		t.Fatalf("stale mark dropped data: %+v", st)
	}

	// A successful merge clears the flag.
	s.MergeSmart("sda", newSnap(31))
	st, _ = s.Snapshot("sda")
	if st.SmartStale {
		t.Fatal("merge did not clear the stale flag")
	}
}

func TestSeedSmartIsStaleAndSilent(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})

	fired := false
	s.SetHooks(Hooks{
		OnSmartMerge: func(string) { fired = true },
		OnMerge:      func(Domain, string) { fired = true },
	})

	s.SeedSmart("sda", newSnap(30))
	if fired {
		t.Fatal("seeding fired merge hooks")
	}
	st, _ := s.Snapshot("sda")
	if st.Smart == nil || !st.SmartStale {
		t.Fatalf("seeded state: %+v", st)
	}

	// Seeding never overwrites live data.
	live := newSnap(40)
	s.MergeSmart("sda", live)
	s.SeedSmart("sda", newSnap(10))
	st, _ = s.Snapshot("sda")
	if st.Smart != live {
		t.Fatal("seed overwrote a live snapshot")
	}
}

func TestScoreHistoryRing(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.SetScore("sda", 100-i, base.Add(time.Duration(i)*5*time.Minute))
	}

	series := s.HealthSeries("sda", base.Add(10*time.Minute))
	if len(series) != 3 || series[0].Score != 98 {
		t.Fatalf("HealthSeries: %+v", series)
	}

	snap := s.HistorySnapshot()
	if len(snap["sda"]) != 5 {
		t.Fatalf("HistorySnapshot: %d points", len(snap["sda"]))
	}
}

func TestHistorySurvivesHotplug(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})
	s.SetScore("sda", 90, time.Now())

	s.RemoveDevice("sda")
	if s.Has("sda") {
		t.Fatal("device still enumerated after removal")
	}
	if len(s.HistorySnapshot()["sda"]) != 1 {
		t.Fatal("history lost on hotplug removal")
	}

	// Re-attachment picks the history back up.
	s.UpsertDevice(model.Device{Name: "sda"})
	s.SetScore("sda", 85, time.Now())
	if len(s.HistorySnapshot()["sda"]) != 2 {
		t.Fatal("history not continued after re-attach")
	}
}

func TestEnduranceSurvivesHotplug(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})
	now := time.Now()
	s.AddEndurance("sda", 1000, now)
	s.RemoveDevice("sda")
	s.AddEndurance("sda", 500, now.Add(time.Minute))

	total := s.EnduranceSnapshot()["sda"].TotalBytesWritten
	if total != 1500 {
		t.Fatalf("endurance total = %d, want 1500", total)
	}

	s.UpsertDevice(model.Device{Name: "sda"})
	st, _ := s.Snapshot("sda")
	if st.Endurance.TotalBytesWritten != 1500 {
		t.Fatal("re-attached device not seeded with endurance counter")
	}
}

func TestMergeIOAndGlobalDomains(t *testing.T) {
	s := New()
	s.UpsertDevice(model.Device{Name: "sda"})

	var merged []Domain
	s.SetHooks(Hooks{OnMerge: func(d Domain, _ string) { merged = append(merged, d) }})

	s.MergeIO("sda", model.IOCounters{UtilPct: 50}, 2*time.Second)
	s.SetFilesystems([]model.FilesystemUsage{{Mount: "/"}})
	s.SetNFS([]model.NFSMount{{Mount: "/mnt"}})
	s.SetVolumes(&model.VolumeStatus{})

	want := []Domain{DomainIO, DomainFS, DomainNFS, DomainVolume}
	if len(merged) != len(want) {
		t.Fatalf("merged = %v", merged)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Fatalf("merged[%d] = %v, want %v", i, merged[i], want[i])
		}
	}

	st, _ := s.Snapshot("sda")
	if st.IO == nil || st.IOElapsed != 2*time.Second {
		t.Fatalf("IO state: %+v", st)
	}
	if fs, stale := s.Filesystems(); stale || len(fs) != 1 {
		t.Fatal("filesystem state wrong")
	}
}

func TestLoadHistoryTrims(t *testing.T) {
	s := New()
	pts := make([]model.HealthPoint, model.HealthPointCapacity+10)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := range pts {
		pts[i] = model.HealthPoint{Timestamp: base.Add(time.Duration(i) * time.Minute), Score: i % 101}
	}
	s.LoadHistory(map[string][]model.HealthPoint{"sda": pts})

	got := s.HistorySnapshot()["sda"]
	if len(got) != model.HealthPointCapacity {
		t.Fatalf("loaded %d points, want %d", len(got), model.HealthPointCapacity)
	}
	if !got[len(got)-1].Timestamp.Equal(pts[len(pts)-1].Timestamp) {
		t.Fatal("trim dropped the most recent points instead of the oldest")
	}
}
