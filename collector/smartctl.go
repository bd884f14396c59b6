package collector

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"time"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
)

// Smartctl reads SMART data and drives self-tests through the smartctl
// binary's JSON output.
type Smartctl struct {
	once sync.Once
	path string
}

// NewSmartctl creates the smartctl-backed provider. The binary is looked up
// lazily on first use.
func NewSmartctl() *Smartctl { return &Smartctl{} }

func (s *Smartctl) binary() (string, error) {
	s.once.Do(func() {
		s.path, _ = exec.LookPath("smartctl")
	})
	if s.path == "" {
		return "", provider.Unavailablef("smartctl not found in PATH")
	}
	return s.path, nil
}

// smartctlOutput is the relevant subset of smartctl --json output.
type smartctlOutput struct {
	SmartStatus struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature struct {
		Current int `json:"current"`
	} `json:"temperature"`
	PowerOnTime struct {
		Hours uint64 `json:"hours"`
	} `json:"power_on_time"`
	ATASmartAttributes struct {
		Table []struct {
			ID     uint32 `json:"id"`
			Name   string `json:"name"`
			Value  uint16 `json:"value"`
			Worst  uint16 `json:"worst"`
			Thresh uint16 `json:"thresh"`
			Flags  struct {
				Prefailure bool `json:"prefailure"`
			} `json:"flags"`
			WhenFailed string `json:"when_failed"`
			Raw        struct {
				Value  uint64 `json:"value"`
				String string `json:"string"`
			} `json:"raw"`
		} `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeHealth *struct {
		CriticalWarning         uint8  `json:"critical_warning"`
		Temperature             int    `json:"temperature"`
		AvailableSpare          uint8  `json:"available_spare"`
		AvailableSpareThreshold uint8  `json:"available_spare_threshold"`
		PercentageUsed          uint8  `json:"percentage_used"`
		DataUnitsRead           uint64 `json:"data_units_read"`
		DataUnitsWritten        uint64 `json:"data_units_written"`
		PowerOnHours            uint64 `json:"power_on_hours"`
		UnsafeShutdowns         uint64 `json:"unsafe_shutdowns"`
		MediaErrors             uint64 `json:"media_errors"`
		NumErrLogEntries        uint64 `json:"num_err_log_entries"`
	} `json:"nvme_smart_health_information_log"`
	ATASelfTest struct {
		Status struct {
			Passed           *bool  `json:"passed"`
			String           string `json:"string"`
			RemainingPercent int    `json:"remaining_percent"`
		} `json:"status"`
	} `json:"ata_smart_data"`
	SelfTestLog struct {
		Standard struct {
			Table []struct {
				Type struct {
					String string `json:"string"`
				} `json:"type"`
				Status struct {
					String string `json:"string"`
					Passed bool   `json:"passed"`
				} `json:"status"`
				LifetimeHours uint64 `json:"lifetime_hours"`
			} `json:"table"`
		} `json:"standard"`
	} `json:"ata_smart_self_test_log"`
}

func (s *Smartctl) run(ctx context.Context, device string, args ...string) (*smartctlOutput, error) {
	bin, err := s.binary()
	if err != nil {
		return nil, err
	}
	full := append(args, "--json", DevicePath(device))
	out, err := exec.CommandContext(ctx, bin, full...).Output()
	// smartctl exits non-zero for many non-fatal conditions (failing drive
	// included) while still producing valid JSON.
	if err != nil && len(out) == 0 {
		return nil, provider.Unavailablef("smartctl %s: %v", device, err)
	}
	var parsed smartctlOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, provider.Unavailablef("smartctl %s: parse: %v", device, err)
	}
	return &parsed, nil
}

// Smart returns one parsed SMART snapshot for the device.
func (s *Smartctl) Smart(ctx context.Context, device string) (*model.SmartSnapshot, error) {
	data, err := s.run(ctx, device, "-a")
	if err != nil {
		return nil, err
	}

	snap := &model.SmartSnapshot{
		Timestamp:    time.Now(),
		PowerOnHours: data.PowerOnTime.Hours,
	}
	if data.SmartStatus.Passed {
		snap.Status = model.SmartPassed
	} else {
		snap.Status = model.SmartFailed
	}
	if data.Temperature.Current > 0 {
		snap.Temperature = data.Temperature.Current
		snap.HasTemp = true
	}

	for _, row := range data.ATASmartAttributes.Table {
		snap.Attributes = append(snap.Attributes, model.SmartAttribute{
			ID:         row.ID,
			Name:       row.Name,
			Value:      row.Value,
			Worst:      row.Worst,
			Thresh:     row.Thresh,
			Prefail:    row.Flags.Prefailure,
			RawValue:   row.Raw.Value,
			RawString:  row.Raw.String,
			WhenFailed: row.WhenFailed,
		})
	}

	if n := data.NVMeHealth; n != nil {
		snap.Nvme = &model.NvmeHealth{
			CriticalWarning:         n.CriticalWarning,
			TemperatureCelsius:      n.Temperature,
			AvailableSparePct:       n.AvailableSpare,
			AvailableSpareThreshold: n.AvailableSpareThreshold,
			PercentageUsed:          n.PercentageUsed,
			DataUnitsRead:           n.DataUnitsRead,
			DataUnitsWritten:        n.DataUnitsWritten,
			PowerOnHours:            n.PowerOnHours,
			UnsafeShutdowns:         n.UnsafeShutdowns,
			MediaErrors:             n.MediaErrors,
			ErrorLogEntries:         n.NumErrLogEntries,
		}
		if !snap.HasTemp && n.Temperature > 0 {
			snap.Temperature = n.Temperature
			snap.HasTemp = true
		}
		if snap.PowerOnHours == 0 {
			snap.PowerOnHours = n.PowerOnHours
		}
	}

	snap.DeriveStatus()
	return snap, nil
}

// StartSelfTest issues a short or long self-test.
func (s *Smartctl) StartSelfTest(ctx context.Context, device string, kind model.SelfTestKind) error {
	bin, err := s.binary()
	if err != nil {
		return err
	}
	out, err := exec.CommandContext(ctx, bin, "-t", kind.String(), DevicePath(device)).CombinedOutput()
	if err != nil {
		return provider.Unavailablef("smartctl -t %s %s: %v (%s)", kind, device, err, string(out))
	}
	return nil
}

// SelfTestStatus reports the progress or last outcome of a self-test.
func (s *Smartctl) SelfTestStatus(ctx context.Context, device string) (model.SelfTestStatus, error) {
	data, err := s.run(ctx, device, "-c")
	if err != nil {
		return model.SelfTestStatus{}, err
	}
	st := data.ATASelfTest.Status
	status := model.SelfTestStatus{UpdatedAt: time.Now()}
	switch {
	case st.RemainingPercent > 0:
		status.State = model.SelfTestRunning
		status.PercentDone = 100 - st.RemainingPercent
	case st.Passed == nil:
		status.State = model.SelfTestIdle
	case *st.Passed:
		status.State = model.SelfTestPassed
		status.PercentDone = 100
	default:
		status.State = model.SelfTestFailed
		status.PercentDone = 100
	}
	return status, nil
}

// SelfTestLog returns the device's self-test log, most recent last.
func (s *Smartctl) SelfTestLog(ctx context.Context, device string) ([]model.SelfTestEntry, error) {
	data, err := s.run(ctx, device, "-l", "selftest")
	if err != nil {
		return nil, err
	}
	table := data.SelfTestLog.Standard.Table
	// smartctl lists most recent first; callers expect most recent last.
	entries := make([]model.SelfTestEntry, 0, len(table))
	for i := len(table) - 1; i >= 0; i-- {
		row := table[i]
		entries = append(entries, model.SelfTestEntry{
			TestType: row.Type.String,
			Status:   row.Status.String,
			Hours:    row.LifetimeHours,
			Passed:   row.Status.Passed,
		})
	}
	return entries, nil
}
