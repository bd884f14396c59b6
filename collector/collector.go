// Package collector implements the provider interfaces against a live Linux
// host: sysfs device enumeration, smartctl for SMART and self-tests, and
// procfs for I/O, filesystem, NFS, and volume-manager readings. Everything in
// here degrades to provider.ErrUnavailable when its data source is missing.
package collector

import "github.com/ftahirops/diskmon/provider"

// Providers bundles the live Linux collectors into a provider set.
func Providers() provider.Set {
	smartctl := NewSmartctl()
	return provider.Set{
		Lister:     &SysfsLister{},
		SMART:      smartctl,
		IO:         NewDiskstats(),
		Filesystem: &Filesystems{},
		NFS:        &Mountstats{},
		Volume:     &Volumes{},
		SelfTest:   smartctl,
	}
}
