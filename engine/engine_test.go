package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/persist"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/provider/replay"
)

// End to end over a recorded stream: a failing drive must surface as a
// zero score, a crit alert, an anomaly record, and persisted state.
func TestEngineRunOverReplay(t *testing.T) {
	var buf bytes.Buffer
	rec := replay.NewRecorder(&buf)
	rec.Record(replay.Frame{
		Devices: []model.Device{{Name: "sda", Kind: model.KindHDD}},
		Smart: map[string]*model.SmartSnapshot{
			"sda": {
				Timestamp: time.Now(),
				Status:    model.SmartFailed,
				Attributes: []model.SmartAttribute{
					{ID: 197, Name: "Current_Pending_Sector", RawValue: 12},
				},
			},
		},
		Filesystems: []model.FilesystemUsage{{
			Mount: "/", TotalBytes: 100, AvailBytes: 3, TotalInodes: 10, FreeInodes: 9,
		}},
	})
	player, err := replay.NewPlayer(&buf)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	log := zap.NewNop().Sugar()
	files, err := persist.NewFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewFiles: %v", err)
	}
	conf := config.NewStore("", config.Default(), log)
	eng := New(player.Set(), conf, files, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	devices := eng.Devices()
	if len(devices) != 1 || devices[0].Device.Name != "sda" {
		t.Fatalf("devices: %+v", devices)
	}
	if !devices[0].HasScore || devices[0].Score != 0 {
		t.Fatalf("failed drive score = %d (has=%v), want 0", devices[0].Score, devices[0].HasScore)
	}

	var kinds []model.RuleKind
	for _, a := range eng.ActiveAlerts() {
		kinds = append(kinds, a.Kind)
	}
	wantKinds := map[model.RuleKind]bool{
		model.RuleSmartStatus: false, // SMART FAILED -> crit
		model.RuleSectorCount: false, // attr 197 rule
		model.RuleThresholdFS: false, // 97% full -> crit
	}
	for _, k := range kinds {
		if _, tracked := wantKinds[k]; tracked {
			wantKinds[k] = true
		}
	}
	for kind, seen := range wantKinds {
		if !seen {
			t.Fatalf("expected active %s alert, have %v", kind, kinds)
		}
	}

	if _, ok := eng.Anomalies()["sda"][197]; !ok {
		t.Fatal("pending-sector anomaly not recorded")
	}

	// Shutdown persisted the state.
	history, err := files.LoadHistory()
	if err != nil || len(history["sda"]) == 0 {
		t.Fatalf("history not persisted: %v %v", history, err)
	}
	anomalies, err := files.LoadAnomalies()
	if err != nil || len(anomalies["sda"]) == 0 {
		t.Fatalf("anomalies not persisted: %v %v", anomalies, err)
	}
}

func TestSaveAndDiffBaseline(t *testing.T) {
	log := zap.NewNop().Sugar()
	files, _ := persist.NewFiles(t.TempDir())
	conf := config.NewStore("", config.Default(), log)
	eng := New(provider.Set{}, conf, files, nil, log)

	eng.store.UpsertDevice(model.Device{Name: "sda", Kind: model.KindHDD})
	eng.store.MergeSmart("sda", &model.SmartSnapshot{
		Timestamp: time.Now(),
		Status:    model.SmartPassed,
		Attributes: []model.SmartAttribute{
			{ID: 5, Name: "Reallocated_Sector_Ct", RawValue: 2},
		},
	})

	if err := eng.SaveBaseline("sda"); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}

	// No movement yet.
	_, deltas, err := eng.BaselineDiff("sda")
	if err != nil || len(deltas) != 0 {
		t.Fatalf("fresh baseline diff: %v %v", deltas, err)
	}

	eng.store.MergeSmart("sda", &model.SmartSnapshot{
		Timestamp: time.Now(),
		Status:    model.SmartPassed,
		Attributes: []model.SmartAttribute{
			{ID: 5, Name: "Reallocated_Sector_Ct", RawValue: 9},
		},
	})
	_, deltas, err = eng.BaselineDiff("sda")
	if err != nil || len(deltas) != 1 {
		t.Fatalf("diff after growth: %v %v", deltas, err)
	}
	if deltas[0].Delta != 7 || deltas[0].BaseRaw != 2 {
		t.Fatalf("delta: %+v", deltas[0])
	}

	if err := eng.SaveBaseline("sdz"); err == nil {
		t.Fatal("SaveBaseline accepted an unknown device")
	}
}
