package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/store"
)

// smartFetchTimeout bounds one SMART read; a wedged drive must not stall the
// whole SMART cycle.
const smartFetchTimeout = 30 * time.Second

// smartFetchParallelism bounds concurrent SMART reads across devices.
const smartFetchParallelism = 4

// Scheduler runs the per-domain poll loops. Each domain has its own cadence
// and degrades independently: a failed poll marks its data stale and the loop
// carries on.
type Scheduler struct {
	providers provider.Set
	store     *store.Store
	conf      *config.Store
	metrics   *Metrics
	log       *zap.SugaredLogger

	// onDeviceGone runs after hotplug removal (alert resolution, metric
	// cleanup). onSmartCycle runs after each completed SMART sweep.
	onDeviceGone func(name string)
	onSmartCycle func()

	repollCh chan string

	// fill projection state, previous sample per mount
	fillMu   sync.Mutex
	fillPrev map[string]fillSample
}

type fillSample struct {
	at   time.Time
	used uint64
}

// NewScheduler creates a scheduler. onDeviceGone and onSmartCycle may be nil.
func NewScheduler(p provider.Set, s *store.Store, conf *config.Store, metrics *Metrics, log *zap.SugaredLogger, onDeviceGone func(string), onSmartCycle func()) *Scheduler {
	return &Scheduler{
		providers:    p,
		store:        s,
		conf:         conf,
		metrics:      metrics,
		log:          log,
		onDeviceGone: onDeviceGone,
		onSmartCycle: onSmartCycle,
		repollCh:     make(chan string, 1),
		fillPrev:     make(map[string]fillSample),
	}
}

// Run starts every poll loop and blocks until ctx is cancelled. The first
// iteration of each loop runs immediately so the store fills without waiting
// a full cadence.
func (sch *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []func(context.Context){sch.smartLoop, sch.ioLoop, sch.slowLoop}
	for _, loop := range loops {
		wg.Add(1)
		go func(f func(context.Context)) {
			defer wg.Done()
			f(ctx)
		}(loop)
	}
	wg.Wait()
}

// RepollSMART requests an immediate SMART poll out of cadence, limited to one
// device when device is non-empty. Coalesces if one is already pending.
func (sch *Scheduler) RepollSMART(device string) {
	select {
	case sch.repollCh <- device:
	default:
	}
}

// ── SMART loop ───────────────────────────────────────────────────────

func (sch *Scheduler) smartLoop(ctx context.Context) {
	if sch.providers.SMART == nil && sch.providers.Lister == nil {
		return
	}
	var only string
	for {
		sch.discoverDevices(ctx)
		sch.pollSmart(ctx, only)
		if sch.onSmartCycle != nil {
			sch.onSmartCycle()
		}
		only = ""

		interval := sch.conf.Current().General.SmartInterval()
		select {
		case <-ctx.Done():
			return
		case only = <-sch.repollCh:
		case <-time.After(interval):
		}
	}
}

// discoverDevices diffs the current enumeration against the store. New
// devices are registered; departed ones are purged and their alerts resolved.
func (sch *Scheduler) discoverDevices(ctx context.Context) {
	if sch.providers.Lister == nil {
		return
	}
	devices, err := sch.providers.Lister.Devices(ctx)
	if err != nil {
		sch.pollFailed("discovery", err)
		return
	}

	cfg := sch.conf.Current()
	seen := make(map[string]bool, len(devices))
	for _, dev := range devices {
		if cfg.Devices.Excluded(dev.Name) {
			continue
		}
		seen[dev.Name] = true
		if !sch.store.Has(dev.Name) {
			sch.log.Infow("device attached", "device", dev.Name, "kind", dev.Kind.String(), "model", dev.Model)
		}
		sch.store.UpsertDevice(dev)
	}
	for _, st := range sch.store.List() {
		if !seen[st.Device.Name] {
			sch.log.Infow("device detached", "device", st.Device.Name)
			sch.store.RemoveDevice(st.Device.Name)
			if sch.onDeviceGone != nil {
				sch.onDeviceGone(st.Device.Name)
			}
		}
	}
}

// pollSmart fetches SMART for every enumerated device with bounded
// parallelism, or for a single device when only is non-empty. Each fetch
// failure degrades only that device.
func (sch *Scheduler) pollSmart(ctx context.Context, only string) {
	if sch.providers.SMART == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(smartFetchParallelism)
	for _, st := range sch.store.List() {
		name := st.Device.Name
		if only != "" && name != only {
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, smartFetchTimeout)
			defer cancel()
			snap, err := sch.providers.SMART.Smart(fctx, name)
			if err != nil {
				sch.store.MarkSmartStale(name)
				sch.pollFailed("smart", err)
				return nil
			}
			if snap.Status == model.SmartUnknown {
				snap.DeriveStatus()
			}
			sch.store.MergeSmart(name, snap)
			return nil
		})
	}
	_ = g.Wait()
}

// ── I/O loop (fast cadence) ──────────────────────────────────────────

func (sch *Scheduler) ioLoop(ctx context.Context) {
	if sch.providers.IO == nil {
		return
	}
	last := time.Now()
	for {
		interval := sch.conf.Current().General.UpdateInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		counters, err := sch.providers.IO.IOCounters(ctx)
		now := time.Now()
		elapsed := now.Sub(last)
		last = now
		if err != nil {
			sch.store.MarkIOStale()
			sch.pollFailed("io", err)
			continue
		}
		for name, c := range counters {
			if !sch.store.Has(name) {
				continue
			}
			sch.store.MergeIO(name, c, elapsed)
		}
	}
}

// ── Slow loop: filesystems, NFS, volume managers ─────────────────────

func (sch *Scheduler) slowLoop(ctx context.Context) {
	if sch.providers.Filesystem == nil && sch.providers.NFS == nil && sch.providers.Volume == nil {
		return
	}
	for {
		sch.pollFilesystems(ctx)
		sch.pollNFS(ctx)
		sch.pollVolumes(ctx)

		interval := sch.conf.Current().General.SlowInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (sch *Scheduler) pollFilesystems(ctx context.Context) {
	if sch.providers.Filesystem == nil {
		return
	}
	filesystems, err := sch.providers.Filesystem.Filesystems(ctx)
	if err != nil {
		sch.store.MarkFSStale()
		sch.pollFailed("filesystem", err)
		return
	}
	sch.projectFill(filesystems, time.Now())
	sch.store.SetFilesystems(filesystems)
}

// projectFill derives each mount's fill rate and days-until-full from the
// delta against the previous sample. A shrinking or flat usage clears the
// projection.
func (sch *Scheduler) projectFill(filesystems []model.FilesystemUsage, now time.Time) {
	sch.fillMu.Lock()
	defer sch.fillMu.Unlock()

	seen := make(map[string]bool, len(filesystems))
	for i := range filesystems {
		fs := &filesystems[i]
		seen[fs.Mount] = true
		prev, ok := sch.fillPrev[fs.Mount]
		sch.fillPrev[fs.Mount] = fillSample{at: now, used: fs.UsedBytes}
		if !ok || !now.After(prev.at) || fs.UsedBytes <= prev.used {
			continue
		}
		rate := float64(fs.UsedBytes-prev.used) / now.Sub(prev.at).Seconds()
		fs.FillRateBps = rate
		fs.DaysUntilFull = float64(fs.AvailBytes) / rate / 86400
	}
	for mount := range sch.fillPrev {
		if !seen[mount] {
			delete(sch.fillPrev, mount)
		}
	}
}

func (sch *Scheduler) pollNFS(ctx context.Context) {
	if sch.providers.NFS == nil {
		return
	}
	mounts, err := sch.providers.NFS.NFSMounts(ctx)
	if err != nil {
		sch.store.MarkNFSStale()
		sch.pollFailed("nfs", err)
		return
	}
	sch.store.SetNFS(mounts)
}

func (sch *Scheduler) pollVolumes(ctx context.Context) {
	if sch.providers.Volume == nil {
		return
	}
	volumes, err := sch.providers.Volume.Volumes(ctx)
	if err != nil {
		sch.store.MarkVolumesStale()
		sch.pollFailed("volume", err)
		return
	}
	sch.store.SetVolumes(volumes)
}

func (sch *Scheduler) pollFailed(domain string, err error) {
	sch.metrics.PollError(domain)
	if provider.IsUnavailable(err) {
		sch.log.Debugw("provider unavailable", "domain", domain, "error", err)
		return
	}
	sch.log.Warnw("poll failed", "domain", domain, "error", err)
}
