package model

import "time"

// SmartStatus is the overall SMART verdict for a device.
type SmartStatus int

const (
	SmartUnknown SmartStatus = iota
	SmartPassed
	SmartWarning // pre-fail attributes near threshold
	SmartFailed
)

func (s SmartStatus) String() string {
	switch s {
	case SmartPassed:
		return "PASS"
	case SmartWarning:
		return "WARN"
	case SmartFailed:
		return "FAIL"
	default:
		return "?"
	}
}

// SmartAttribute is one ATA SMART attribute row.
type SmartAttribute struct {
	ID         uint32 `json:"id"`
	Name       string `json:"name"`
	Value      uint16 `json:"value"`
	Worst      uint16 `json:"worst"`
	Thresh     uint16 `json:"thresh"`
	Prefail    bool   `json:"prefail"`
	RawValue   uint64 `json:"raw_value"`
	RawString  string `json:"raw_string,omitempty"`
	WhenFailed string `json:"when_failed,omitempty"`
}

// AtRisk reports whether this pre-fail attribute is within 10 points of its
// failure threshold.
func (a SmartAttribute) AtRisk() bool {
	return a.Prefail && a.Thresh > 0 && a.Value <= a.Thresh+10
}

// NvmeHealth mirrors the NVMe SMART / Health Information Log.
type NvmeHealth struct {
	CriticalWarning         uint8  `json:"critical_warning"`
	TemperatureCelsius      int    `json:"temperature_celsius"`
	AvailableSparePct       uint8  `json:"available_spare_pct"`
	AvailableSpareThreshold uint8  `json:"available_spare_threshold"`
	PercentageUsed          uint8  `json:"percentage_used"`
	DataUnitsRead           uint64 `json:"data_units_read"` // units of 1000 * 512 bytes
	DataUnitsWritten        uint64 `json:"data_units_written"`
	PowerOnHours            uint64 `json:"power_on_hours"`
	UnsafeShutdowns         uint64 `json:"unsafe_shutdowns"`
	MediaErrors             uint64 `json:"media_errors"`
	ErrorLogEntries         uint64 `json:"error_log_entries"`
}

// BytesRead returns the approximate bytes read (1 unit = 512 KB).
func (n NvmeHealth) BytesRead() uint64 { return n.DataUnitsRead * 512 * 1000 }

// BytesWritten returns the approximate bytes written.
func (n NvmeHealth) BytesWritten() uint64 { return n.DataUnitsWritten * 512 * 1000 }

// SmartSnapshot is one complete SMART reading for a device. It is replaced
// wholesale on each poll; the store keeps the previous snapshot for diffing.
type SmartSnapshot struct {
	Timestamp    time.Time        `json:"timestamp"`
	Status       SmartStatus      `json:"status"`
	Temperature  int              `json:"temperature"` // Celsius, valid when HasTemp
	HasTemp      bool             `json:"has_temp"`
	PowerOnHours uint64           `json:"power_on_hours"`
	Attributes   []SmartAttribute `json:"attributes,omitempty"`
	Nvme         *NvmeHealth      `json:"nvme,omitempty"`
}

// Attr returns the attribute with the given ID, or nil.
func (s *SmartSnapshot) Attr(id uint32) *SmartAttribute {
	for i := range s.Attributes {
		if s.Attributes[i].ID == id {
			return &s.Attributes[i]
		}
	}
	return nil
}

// AttrRaw returns the raw value of an attribute, or 0 if absent.
func (s *SmartSnapshot) AttrRaw(id uint32) uint64 {
	if a := s.Attr(id); a != nil {
		return a.RawValue
	}
	return 0
}

// DeriveStatus may downgrade an overall Passed verdict to Warning based on
// at-risk pre-fail attributes or NVMe critical conditions. A Failed verdict
// is never changed.
func (s *SmartSnapshot) DeriveStatus() {
	if s.Status == SmartFailed {
		return
	}
	for _, attr := range s.Attributes {
		if attr.AtRisk() {
			s.Status = SmartWarning
			return
		}
	}
	if n := s.Nvme; n != nil {
		if n.CriticalWarning != 0 || n.MediaErrors > 0 {
			s.Status = SmartWarning
			return
		}
		if n.AvailableSparePct < n.AvailableSpareThreshold {
			s.Status = SmartWarning
		}
	}
}
