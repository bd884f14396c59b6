package model

import "strings"

// DeviceKind classifies a block device by its storage technology.
type DeviceKind int

const (
	KindUnknown DeviceKind = iota
	KindHDD
	KindSSD
	KindNVMe
	KindVirtual
)

// String returns the short display label for the kind.
func (k DeviceKind) String() string {
	switch k {
	case KindHDD:
		return "HDD"
	case KindSSD:
		return "SSD"
	case KindNVMe:
		return "NVMe"
	case KindVirtual:
		return "VRT"
	default:
		return "?"
	}
}

// Device is the stable identity of one block device. The name ("sda",
// "nvme0n1") doubles as the persistence key: history outlives enumeration.
type Device struct {
	Name          string     `json:"name"`
	Kind          DeviceKind `json:"kind"`
	Model         string     `json:"model,omitempty"`
	Serial        string     `json:"serial,omitempty"`
	CapacityBytes uint64     `json:"capacity_bytes"`
	Rotational    bool       `json:"rotational"`
	Transport     string     `json:"transport,omitempty"`
}

// InferKind derives the device kind from transport and rotational hints.
func (d *Device) InferKind() {
	tran := strings.ToLower(d.Transport)
	switch {
	case tran == "nvme":
		d.Kind = KindNVMe
	case d.Rotational:
		d.Kind = KindHDD
	case tran == "sata" || tran == "sas":
		d.Kind = KindSSD
	case strings.HasPrefix(d.Name, "md") || strings.HasPrefix(d.Name, "dm-") ||
		strings.HasPrefix(d.Name, "loop") || strings.HasPrefix(d.Name, "zram"):
		d.Kind = KindVirtual
	case !d.Rotational:
		d.Kind = KindSSD
	default:
		d.Kind = KindUnknown
	}
}
