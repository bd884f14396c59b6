package engine

import "github.com/ftahirops/diskmon/model"

// Attribute IDs referenced by scoring and anomaly detection.
const (
	attrReallocated   = 5
	attrPowerOnHours  = 9
	attrPending       = 197
	attrUncorrectable = 198
	attrCRCErrors     = 199
)

// HealthScore computes a 0-100 score from a device's SMART snapshot.
// 100 = pristine or unscored (no SMART data), 0 = hard failure. A Failed
// overall status dominates everything else; otherwise points are deducted
// for critical attributes, temperature relative to the device kind, and
// NVMe wear. The score never depends on alert state.
func HealthScore(dev model.Device, smart *model.SmartSnapshot) int {
	if smart == nil {
		return 100
	}
	if smart.Status == model.SmartFailed {
		return 0
	}

	score := 100

	if smart.Status == model.SmartWarning {
		score -= 10
	}

	// Temperature penalty, HDDs run cooler than solid state.
	if smart.HasTemp {
		t := smart.Temperature
		if dev.Kind == model.KindHDD {
			switch {
			case t >= 60:
				score -= 20
			case t >= 50:
				score -= 10
			}
		} else {
			switch {
			case t >= 70:
				score -= 20
			case t >= 55:
				score -= 10
			}
		}
	}

	// ATA critical attribute penalties.
	for _, attr := range smart.Attributes {
		switch attr.ID {
		case attrReallocated:
			if attr.RawValue > 100 {
				score -= 30
			} else if attr.RawValue > 0 {
				score -= 15
			}
		case attrPending:
			if attr.RawValue > 0 {
				score -= 25
			}
		case attrUncorrectable:
			if attr.RawValue > 0 {
				score -= 40
			}
		}
	}

	// NVMe wear and media penalties.
	if n := smart.Nvme; n != nil {
		switch {
		case n.PercentageUsed >= 90:
			score -= 30
		case n.PercentageUsed >= 70:
			score -= 15
		case n.PercentageUsed >= 50:
			score -= 5
		}
		if n.MediaErrors > 0 {
			score -= 25
		}
		if n.AvailableSparePct < n.AvailableSpareThreshold {
			score -= 20
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
