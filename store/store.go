// Package store is the authoritative, concurrently-readable device state.
// Each poll domain commits whole sub-records through a single merge point per
// device; readers always observe complete, self-consistent records.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/ftahirops/diskmon/model"
)

// Domain identifies one poll domain. The set is closed; merge dispatch is
// exhaustive.
type Domain int

const (
	DomainSMART Domain = iota
	DomainIO
	DomainFS
	DomainNFS
	DomainVolume
)

func (d Domain) String() string {
	switch d {
	case DomainSMART:
		return "smart"
	case DomainIO:
		return "io"
	case DomainFS:
		return "filesystem"
	case DomainNFS:
		return "nfs"
	case DomainVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// DeviceState is the full current state of one device. Values returned by
// the store are copies; sub-record pointers are replaced wholesale on merge
// and must be treated as read-only.
type DeviceState struct {
	Device model.Device

	Smart          *model.SmartSnapshot
	SmartPrev      *model.SmartSnapshot
	SmartStale     bool
	SmartUpdatedAt time.Time

	IO        *model.IOCounters
	IOStale   bool
	IOElapsed time.Duration // wall time covered by the latest IO reading

	Score    int
	HasScore bool

	SelfTest    model.SelfTestStatus
	SelfTestLog []model.SelfTestEntry

	Endurance model.DeviceEndurance
}

type deviceEntry struct {
	mergeMu sync.Mutex // single merge point per device
	state   DeviceState
}

// Hooks are invoked synchronously inside a merge, after the sub-record is
// committed and before the merge returns, so alert evaluation never lags a
// poll cycle. Hooks run outside the store's internal lock and may read back.
type Hooks struct {
	// OnSmartMerge runs for SMART merges before OnMerge (health scoring and
	// anomaly detection feed the alert pass).
	OnSmartMerge func(device string)
	// OnMerge runs for every committed merge.
	OnMerge func(domain Domain, subject string)
}

// Store holds all device and mount state.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry

	globalMu    sync.Mutex // merge point for non-device domains
	filesystems []model.FilesystemUsage
	fsStale     bool
	nfs         []model.NFSMount
	nfsStale    bool
	volumes     *model.VolumeStatus
	volStale    bool

	// Health history and endurance counters are keyed by stable identity
	// and survive hotplug removal of the live entry.
	history   map[string]*Ring
	endurance model.EnduranceMap

	hooks Hooks
}

// New creates an empty store.
func New() *Store {
	return &Store{
		devices:   make(map[string]*deviceEntry),
		history:   make(map[string]*Ring),
		endurance: make(model.EnduranceMap),
	}
}

// SetHooks installs the merge hooks. Must be called before polling starts.
func (s *Store) SetHooks(h Hooks) { s.hooks = h }

// UpsertDevice adds a device on hotplug arrival or refreshes its identity.
func (s *Store) UpsertDevice(dev model.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.devices[dev.Name]; ok {
		e.state.Device = dev
		return
	}
	s.devices[dev.Name] = &deviceEntry{state: DeviceState{
		Device:    dev,
		Endurance: s.endurance[dev.Name],
	}}
	if s.history[dev.Name] == nil {
		s.history[dev.Name] = NewRing(model.HealthPointCapacity)
	}
}

// RemoveDevice purges live state on hotplug departure. Persisted history is
// keyed by stable identity and is deliberately retained.
func (s *Store) RemoveDevice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, name)
}

// Has reports whether the device is currently enumerated.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[name]
	return ok
}

// Snapshot returns a copy of one device's state.
func (s *Store) Snapshot(name string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.devices[name]
	if !ok {
		return DeviceState{}, false
	}
	return e.state, true
}

// List returns copies of all device states ordered by name.
func (s *Store) List() []DeviceState {
	s.mu.RLock()
	out := make([]DeviceState, 0, len(s.devices))
	for _, e := range s.devices {
		out = append(out, e.state)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Device.Name < out[j].Device.Name })
	return out
}

func (s *Store) entry(name string) *deviceEntry {
	s.mu.RLock()
	e := s.devices[name]
	s.mu.RUnlock()
	return e
}

// MergeSmart commits a new SMART snapshot for a device. The previous
// snapshot is retained for baseline/delta diffing. Hooks fire before return.
func (s *Store) MergeSmart(name string, snap *model.SmartSnapshot) {
	e := s.entry(name)
	if e == nil || snap == nil {
		return
	}
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	s.mu.Lock()
	e.state.SmartPrev = e.state.Smart
	e.state.Smart = snap
	e.state.SmartStale = false
	e.state.SmartUpdatedAt = snap.Timestamp
	s.mu.Unlock()

	if s.hooks.OnSmartMerge != nil {
		s.hooks.OnSmartMerge(name)
	}
	if s.hooks.OnMerge != nil {
		s.hooks.OnMerge(DomainSMART, name)
	}
}

// SeedSmart installs a cached SMART snapshot on cold start. The snapshot is
// marked stale so no rule evaluation runs on it, and no hooks fire; it only
// shortens the window before the first live poll has display data.
func (s *Store) SeedSmart(name string, snap *model.SmartSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.devices[name]
	if !ok || snap == nil || e.state.Smart != nil {
		return
	}
	e.state.Smart = snap
	e.state.SmartStale = true
	e.state.SmartUpdatedAt = snap.Timestamp
}

// MarkSmartStale records a failed SMART fetch; the last snapshot stays.
func (s *Store) MarkSmartStale(name string) {
	s.mu.Lock()
	if e, ok := s.devices[name]; ok {
		e.state.SmartStale = true
	}
	s.mu.Unlock()
}

// MergeIO commits new I/O counters for a device. elapsed is the wall time
// since the previous reading (used for endurance accounting).
func (s *Store) MergeIO(name string, c model.IOCounters, elapsed time.Duration) {
	e := s.entry(name)
	if e == nil {
		return
	}
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	reading := c
	s.mu.Lock()
	e.state.IO = &reading
	e.state.IOStale = false
	e.state.IOElapsed = elapsed
	s.mu.Unlock()

	if s.hooks.OnMerge != nil {
		s.hooks.OnMerge(DomainIO, name)
	}
}

// MarkIOStale records a failed I/O fetch for every device.
func (s *Store) MarkIOStale() {
	s.mu.Lock()
	for _, e := range s.devices {
		e.state.IOStale = true
	}
	s.mu.Unlock()
}

// SetFilesystems replaces the filesystem usage list wholesale.
func (s *Store) SetFilesystems(fs []model.FilesystemUsage) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.mu.Lock()
	s.filesystems = fs
	s.fsStale = false
	s.mu.Unlock()

	if s.hooks.OnMerge != nil {
		s.hooks.OnMerge(DomainFS, "")
	}
}

// MarkFSStale records a failed filesystem fetch.
func (s *Store) MarkFSStale() {
	s.mu.Lock()
	s.fsStale = true
	s.mu.Unlock()
}

// Filesystems returns the current filesystem list and its stale flag.
func (s *Store) Filesystems() ([]model.FilesystemUsage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filesystems, s.fsStale
}

// SetNFS replaces the NFS mount list wholesale.
func (s *Store) SetNFS(mounts []model.NFSMount) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.mu.Lock()
	s.nfs = mounts
	s.nfsStale = false
	s.mu.Unlock()

	if s.hooks.OnMerge != nil {
		s.hooks.OnMerge(DomainNFS, "")
	}
}

// MarkNFSStale records a failed NFS fetch.
func (s *Store) MarkNFSStale() {
	s.mu.Lock()
	s.nfsStale = true
	s.mu.Unlock()
}

// NFSMounts returns the current NFS mounts and their stale flag.
func (s *Store) NFSMounts() ([]model.NFSMount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nfs, s.nfsStale
}

// SetVolumes replaces the volume-manager status wholesale.
func (s *Store) SetVolumes(v *model.VolumeStatus) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.mu.Lock()
	s.volumes = v
	s.volStale = false
	s.mu.Unlock()

	if s.hooks.OnMerge != nil {
		s.hooks.OnMerge(DomainVolume, "")
	}
}

// MarkVolumesStale records a failed volume-manager fetch.
func (s *Store) MarkVolumesStale() {
	s.mu.Lock()
	s.volStale = true
	s.mu.Unlock()
}

// Volumes returns the current volume status and its stale flag.
func (s *Store) Volumes() (*model.VolumeStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volumes, s.volStale
}

// SetScore records a freshly computed health score and appends it to the
// device's history ring.
func (s *Store) SetScore(name string, score int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.devices[name]
	if !ok {
		return
	}
	e.state.Score = score
	e.state.HasScore = true
	r := s.history[name]
	if r == nil {
		r = NewRing(model.HealthPointCapacity)
		s.history[name] = r
	}
	r.Push(model.HealthPoint{Timestamp: at, Score: score})
}

// HealthSeries returns the device's health points at or after since,
// oldest first.
func (s *Store) HealthSeries(name string, since time.Time) []model.HealthPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.history[name]
	if r == nil {
		return nil
	}
	return r.Since(since)
}

// HistorySnapshot returns every device's health series for persistence,
// oldest first per device.
func (s *Store) HistorySnapshot() map[string][]model.HealthPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.HealthPoint, len(s.history))
	for name, r := range s.history {
		if r.Len() > 0 {
			out[name] = r.Points()
		}
	}
	return out
}

// LoadHistory seeds the history rings from persisted series.
func (s *Store) LoadHistory(series map[string][]model.HealthPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, pts := range series {
		r := s.history[name]
		if r == nil {
			r = NewRing(model.HealthPointCapacity)
			s.history[name] = r
		}
		r.Load(pts)
	}
}

// SetSelfTest updates a device's tracked self-test status.
func (s *Store) SetSelfTest(name string, st model.SelfTestStatus) {
	s.mu.Lock()
	if e, ok := s.devices[name]; ok {
		e.state.SelfTest = st
	}
	s.mu.Unlock()
}

// SetSelfTestLog replaces a device's self-test log (most recent last).
func (s *Store) SetSelfTestLog(name string, log []model.SelfTestEntry) {
	s.mu.Lock()
	if e, ok := s.devices[name]; ok {
		e.state.SelfTestLog = log
	}
	s.mu.Unlock()
}

// AddEndurance accumulates written bytes into the device's endurance counter
// and returns the updated value. Counters are keyed by stable identity, so
// they survive hotplug removal just like history.
func (s *Store) AddEndurance(name string, bytes uint64, now time.Time) model.DeviceEndurance {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.endurance[name]
	if end.FirstTrackedAt.IsZero() {
		end.FirstTrackedAt = now
	}
	end.TotalBytesWritten += bytes
	s.endurance[name] = end
	if e, ok := s.devices[name]; ok {
		e.state.Endurance = end
	}
	return end
}

// LoadEndurance seeds endurance counters from persisted state.
func (s *Store) LoadEndurance(m model.EnduranceMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, end := range m {
		s.endurance[name] = end
		if e, ok := s.devices[name]; ok {
			e.state.Endurance = end
		}
	}
}

// EnduranceSnapshot returns every tracked endurance counter for persistence.
func (s *Store) EnduranceSnapshot() model.EnduranceMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.EnduranceMap, len(s.endurance))
	for name, end := range s.endurance {
		out[name] = end
	}
	return out
}
