package engine

import (
	"testing"

	"github.com/ftahirops/diskmon/model"
)

func hdd() model.Device { return model.Device{Name: "sda", Kind: model.KindHDD} }
func ssd() model.Device { return model.Device{Name: "sdb", Kind: model.KindSSD} }

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name  string
		dev   model.Device
		smart *model.SmartSnapshot
		want  int
	}{
		{
			"no data scores pristine",
			hdd(), nil, 100,
		},
		{
			"failed status dominates everything",
			hdd(),
			&model.SmartSnapshot{
				Status:      model.SmartFailed,
				Temperature: 20, HasTemp: true,
			},
			0,
		},
		{
			"clean pass",
			ssd(),
			&model.SmartSnapshot{Status: model.SmartPassed, Temperature: 30, HasTemp: true},
			100,
		},
		{
			"warning status costs 10",
			ssd(),
			&model.SmartSnapshot{Status: model.SmartWarning},
			90,
		},
		{
			"hdd hot at 52C",
			hdd(),
			&model.SmartSnapshot{Status: model.SmartPassed, Temperature: 52, HasTemp: true},
			90,
		},
		{
			"ssd fine at 52C",
			ssd(),
			&model.SmartSnapshot{Status: model.SmartPassed, Temperature: 52, HasTemp: true},
			100,
		},
		{
			"ssd hot at 72C",
			ssd(),
			&model.SmartSnapshot{Status: model.SmartPassed, Temperature: 72, HasTemp: true},
			80,
		},
		{
			"few reallocated sectors",
			hdd(),
			&model.SmartSnapshot{
				Status:     model.SmartPassed,
				Attributes: []model.SmartAttribute{{ID: attrReallocated, RawValue: 8}},
			},
			85,
		},
		{
			"many reallocated sectors",
			hdd(),
			&model.SmartSnapshot{
				Status:     model.SmartPassed,
				Attributes: []model.SmartAttribute{{ID: attrReallocated, RawValue: 250}},
			},
			70,
		},
		{
			"pending plus uncorrectable",
			hdd(),
			&model.SmartSnapshot{
				Status: model.SmartPassed,
				Attributes: []model.SmartAttribute{
					{ID: attrPending, RawValue: 2},
					{ID: attrUncorrectable, RawValue: 1},
				},
			},
			35,
		},
		{
			"nvme moderately worn",
			ssd(),
			&model.SmartSnapshot{
				Status: model.SmartPassed,
				Nvme:   &model.NvmeHealth{PercentageUsed: 55, AvailableSpareThreshold: 10, AvailableSparePct: 100},
			},
			95,
		},
		{
			"nvme nearly spent with media errors",
			ssd(),
			&model.SmartSnapshot{
				Status: model.SmartPassed,
				Nvme: &model.NvmeHealth{
					PercentageUsed: 93, MediaErrors: 4,
					AvailableSparePct: 5, AvailableSpareThreshold: 10,
				},
			},
			25,
		},
		{
			"score clamps at zero",
			hdd(),
			&model.SmartSnapshot{
				Status:      model.SmartWarning,
				Temperature: 65, HasTemp: true,
				Attributes: []model.SmartAttribute{
					{ID: attrReallocated, RawValue: 500},
					{ID: attrPending, RawValue: 9},
					{ID: attrUncorrectable, RawValue: 3},
				},
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthScore(tt.dev, tt.smart)
			if got != tt.want {
				t.Fatalf("HealthScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Adding defects must never raise the score.
func TestHealthScoreMonotonicity(t *testing.T) {
	base := &model.SmartSnapshot{Status: model.SmartPassed}
	worse := &model.SmartSnapshot{
		Status:     model.SmartPassed,
		Attributes: []model.SmartAttribute{{ID: attrPending, RawValue: 1}},
	}
	evenWorse := &model.SmartSnapshot{
		Status: model.SmartPassed,
		Attributes: []model.SmartAttribute{
			{ID: attrPending, RawValue: 1},
			{ID: attrUncorrectable, RawValue: 1},
		},
	}

	s0 := HealthScore(hdd(), base)
	s1 := HealthScore(hdd(), worse)
	s2 := HealthScore(hdd(), evenWorse)
	if !(s0 > s1 && s1 > s2) {
		t.Fatalf("scores not strictly decreasing: %d, %d, %d", s0, s1, s2)
	}
}
