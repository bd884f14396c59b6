// Package engine is the monitoring core: scoring, anomaly detection, the
// alert state machine, self-test tracking, and the poll scheduler that feeds
// them. It consumes parsed readings through the provider interfaces and never
// talks to hardware itself.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/persist"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/store"
)

// saveInterval is the cadence of the periodic persistence sweep. A final
// sweep also runs on shutdown.
const saveInterval = 5 * time.Minute

// Engine wires the store, rule evaluation, notification, and persistence
// together and runs the poll loops.
type Engine struct {
	store     *store.Store
	conf      *config.Store
	providers provider.Set
	files     *persist.Files
	metrics   *Metrics
	log       *zap.SugaredLogger

	alerts    *AlertEngine
	anomalies *AnomalyDetector
	selftest  *SelfTestScheduler
	scheduler *Scheduler
}

// New assembles an engine. Persisted state (history, anomalies, endurance,
// acknowledgements, SMART cache) is loaded here so the first poll cycle
// already sees it; load failures are logged and treated as empty state.
func New(providers provider.Set, conf *config.Store, files *persist.Files, metrics *Metrics, log *zap.SugaredLogger) *Engine {
	st := store.New()

	history, err := files.LoadHistory()
	if err != nil {
		log.Warnw("health history load failed, starting empty", "error", err)
	}
	st.LoadHistory(history)

	endurance, err := files.LoadEndurance()
	if err != nil {
		log.Warnw("endurance load failed, starting empty", "error", err)
	}
	st.LoadEndurance(endurance)

	anomalySeed, err := files.LoadAnomalies()
	if err != nil {
		log.Warnw("anomaly log load failed, starting empty", "error", err)
	}

	acked, err := files.LoadAckedKeys()
	if err != nil {
		log.Warnw("acknowledgement load failed, starting empty", "error", err)
	}

	e := &Engine{
		store:     st,
		conf:      conf,
		providers: providers,
		files:     files,
		metrics:   metrics,
		log:       log,
		anomalies: NewAnomalyDetector(anomalySeed),
	}
	dispatcher := NewDispatcher(conf, metrics, log)
	e.alerts = NewAlertEngine(dispatcher, files.NewAlertLog(), files, acked, log)
	e.selftest = NewSelfTestScheduler(providers.SelfTest, st, log)
	e.scheduler = NewScheduler(providers, st, conf, metrics, log, e.deviceGone, e.smartCycleDone)

	st.SetHooks(store.Hooks{
		OnSmartMerge: e.onSmartMerge,
		OnMerge:      e.onMerge,
	})
	return e
}

// Run seeds the SMART cache, starts the config watcher and poll loops, and
// blocks until ctx is cancelled. All persisted state is flushed on the way
// out.
func (e *Engine) Run(ctx context.Context) error {
	e.seedSmartCache(ctx)

	go e.conf.Watch(ctx)
	go e.saveLoop(ctx)

	e.scheduler.Run(ctx)

	e.saveAll()
	e.log.Infow("engine stopped, state saved")
	return nil
}

// seedSmartCache installs cached snapshots for devices present at startup so
// the store has display data before the first live SMART sweep. Seeded data
// is stale by definition and never evaluated.
func (e *Engine) seedSmartCache(ctx context.Context) {
	cache, err := e.files.LoadSmartCache()
	if err != nil {
		e.log.Warnw("SMART cache load failed, cold start", "error", err)
		return
	}
	if len(cache) == 0 {
		return
	}
	e.scheduler.discoverDevices(ctx)
	for name, snap := range cache {
		e.store.SeedSmart(name, snap)
	}
}

// ── Merge hooks ──────────────────────────────────────────────────────

// onSmartMerge recomputes the health score and anomaly log for one device.
// Runs synchronously inside the merge, before alert evaluation.
func (e *Engine) onSmartMerge(device string) {
	st, ok := e.store.Snapshot(device)
	if !ok || st.Smart == nil {
		return
	}
	now := time.Now()

	score := HealthScore(st.Device, st.Smart)
	e.store.SetScore(device, score, now)
	e.metrics.SetHealthScore(device, score)
	if st.Smart.HasTemp {
		e.metrics.SetTemperature(device, st.Smart.Temperature)
	}

	if e.anomalies.Update(device, st.Smart, now) {
		if err := e.files.SaveAnomalies(e.anomalies.Snapshot()); err != nil {
			e.log.Warnw("anomaly persistence failed", "error", err)
		}
	}
}

// onMerge runs rule evaluation for the domain that just committed.
func (e *Engine) onMerge(domain store.Domain, subject string) {
	cfg := e.conf.Current()
	switch domain {
	case store.DomainSMART:
		if st, ok := e.store.Snapshot(subject); ok {
			e.alerts.EvaluateSmart(cfg, st)
		}
	case store.DomainIO:
		st, ok := e.store.Snapshot(subject)
		if !ok {
			return
		}
		e.accumulateEndurance(st)
		e.alerts.EvaluateIO(cfg, st)
	case store.DomainFS:
		if filesystems, stale := e.store.Filesystems(); !stale {
			e.alerts.EvaluateFilesystems(cfg, filesystems)
		}
	case store.DomainNFS:
		if mounts, stale := e.store.NFSMounts(); !stale {
			e.alerts.EvaluateNFS(cfg, mounts)
		}
	case store.DomainVolume:
		// No alert rules are defined on volume-manager state.
	}
	e.publishAlertGauges()
}

// accumulateEndurance converts the write rate of the latest I/O reading into
// bytes written over its elapsed window.
func (e *Engine) accumulateEndurance(st store.DeviceState) {
	if st.IO == nil || st.IOElapsed <= 0 || st.IO.WriteBytesPerSec <= 0 {
		return
	}
	bytes := uint64(st.IO.WriteBytesPerSec * st.IOElapsed.Seconds())
	if bytes > 0 {
		e.store.AddEndurance(st.Device.Name, bytes, time.Now())
	}
}

func (e *Engine) publishAlertGauges() {
	var warn, crit int
	for _, a := range e.alerts.Active() {
		switch a.Severity {
		case model.SeverityWarn:
			warn++
		case model.SeverityCrit:
			crit++
		}
	}
	e.metrics.SetActiveAlerts(warn, crit)
}

// deviceGone resolves alerts and drops metric series after hotplug removal.
func (e *Engine) deviceGone(name string) {
	e.alerts.ResolveSubject(name)
	e.metrics.RemoveDevice(name)
	e.publishAlertGauges()
}

// smartCycleDone refreshes the SMART cache file after each completed sweep.
func (e *Engine) smartCycleDone() {
	cache := make(map[string]*model.SmartSnapshot)
	for _, st := range e.store.List() {
		if st.Smart != nil && !st.SmartStale {
			cache[st.Device.Name] = st.Smart
		}
	}
	if len(cache) == 0 {
		return
	}
	if err := e.files.SaveSmartCache(cache); err != nil {
		e.log.Warnw("SMART cache persistence failed", "error", err)
	}
}

// ── Persistence sweep ────────────────────────────────────────────────

func (e *Engine) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.saveAll()
		}
	}
}

func (e *Engine) saveAll() {
	if err := e.files.SaveHistory(e.store.HistorySnapshot()); err != nil {
		e.log.Warnw("history persistence failed", "error", err)
	}
	if err := e.files.SaveEndurance(e.store.EnduranceSnapshot()); err != nil {
		e.log.Warnw("endurance persistence failed", "error", err)
	}
	if err := e.files.SaveAnomalies(e.anomalies.Snapshot()); err != nil {
		e.log.Warnw("anomaly persistence failed", "error", err)
	}
}

// ── Queries ──────────────────────────────────────────────────────────

// Devices returns the current state of every enumerated device.
func (e *Engine) Devices() []store.DeviceState { return e.store.List() }

// Device returns the current state of one device.
func (e *Engine) Device(name string) (store.DeviceState, bool) {
	return e.store.Snapshot(name)
}

// Filesystems returns the current filesystem usage list and its stale flag.
func (e *Engine) Filesystems() ([]model.FilesystemUsage, bool) {
	return e.store.Filesystems()
}

// NFSMounts returns the current NFS mounts and their stale flag.
func (e *Engine) NFSMounts() ([]model.NFSMount, bool) { return e.store.NFSMounts() }

// Volumes returns the current volume-manager status and its stale flag.
func (e *Engine) Volumes() (*model.VolumeStatus, bool) { return e.store.Volumes() }

// ActiveAlerts returns the active alerts, crit first.
func (e *Engine) ActiveAlerts() []model.Alert { return e.alerts.Active() }

// AlertHistory reads resolved alerts from the persistent log.
func (e *Engine) AlertHistory(filter persist.AlertFilter) ([]model.Alert, error) {
	return e.alerts.History(filter)
}

// HealthSeries returns a device's health points at or after since.
func (e *Engine) HealthSeries(device string, since time.Time) []model.HealthPoint {
	return e.store.HealthSeries(device, since)
}

// Anomalies returns a copy of the full anomaly log.
func (e *Engine) Anomalies() model.AnomalyLog { return e.anomalies.Snapshot() }

// SelfTestStatus returns a device's tracked self-test status.
func (e *Engine) SelfTestStatus(device string) (model.SelfTestStatus, bool) {
	st, ok := e.store.Snapshot(device)
	if !ok {
		return model.SelfTestStatus{}, false
	}
	return st.SelfTest, true
}

// SelfTestLog returns a device's on-drive self-test log, most recent last.
func (e *Engine) SelfTestLog(device string) []model.SelfTestEntry {
	st, ok := e.store.Snapshot(device)
	if !ok {
		return nil
	}
	return st.SelfTestLog
}

// BaselineDelta is one attribute's movement since a saved baseline.
type BaselineDelta struct {
	ID         uint32 `json:"id"`
	Name       string `json:"name"`
	BaseRaw    uint64 `json:"base_raw"`
	CurrentRaw uint64 `json:"current_raw"`
	Delta      int64  `json:"delta"`
}

// BaselineDiff compares a device's current SMART attributes against its saved
// baseline, reporting only attributes that moved.
func (e *Engine) BaselineDiff(device string) (model.Baseline, []BaselineDelta, error) {
	base, ok, err := e.files.LoadBaseline(device)
	if err != nil {
		return model.Baseline{}, nil, err
	}
	if !ok {
		return model.Baseline{}, nil, fmt.Errorf("no baseline saved for %s", device)
	}
	st, ok := e.store.Snapshot(device)
	if !ok || st.Smart == nil {
		return base, nil, fmt.Errorf("no SMART data for %s", device)
	}
	var deltas []BaselineDelta
	for _, attr := range st.Smart.Attributes {
		baseRaw, delta, recorded := base.AttrDelta(attr.ID, attr.RawValue)
		if recorded && delta != 0 {
			deltas = append(deltas, BaselineDelta{
				ID:         attr.ID,
				Name:       attr.Name,
				BaseRaw:    baseRaw,
				CurrentRaw: attr.RawValue,
				Delta:      delta,
			})
		}
	}
	return base, deltas, nil
}

// ── Commands ─────────────────────────────────────────────────────────

// Acknowledge marks one active alert acknowledged by ID.
func (e *Engine) Acknowledge(id string) bool { return e.alerts.Acknowledge(id) }

// AcknowledgeAll acknowledges every active alert.
func (e *Engine) AcknowledgeAll() int { return e.alerts.AcknowledgeAll() }

// SaveBaseline captures the device's current SMART attributes as its new
// baseline.
func (e *Engine) SaveBaseline(device string) error {
	st, ok := e.store.Snapshot(device)
	if !ok {
		return fmt.Errorf("unknown device %q", device)
	}
	if st.Smart == nil || st.SmartStale {
		return fmt.Errorf("no fresh SMART data for %s", device)
	}
	return e.files.SaveBaseline(model.NewBaseline(device, st.Smart, time.Now()))
}

// ScheduleSelfTest starts a drive self-test; see SelfTestScheduler.Schedule.
func (e *Engine) ScheduleSelfTest(ctx context.Context, device string, kind model.SelfTestKind, wait bool, timeout time.Duration) (model.SelfTestStatus, error) {
	return e.selftest.Schedule(ctx, device, kind, wait, timeout)
}

// ClearAnomalies clears the anomaly log for one device, or all devices when
// device is empty. The cleared state is persisted immediately.
func (e *Engine) ClearAnomalies(device string) bool {
	var changed bool
	if device == "" {
		changed = e.anomalies.ClearAll()
	} else {
		changed = e.anomalies.Clear(device)
	}
	if changed {
		if err := e.files.SaveAnomalies(e.anomalies.Snapshot()); err != nil {
			e.log.Warnw("anomaly persistence failed", "error", err)
		}
	}
	return changed
}

// RepollSMART requests an immediate out-of-cadence SMART poll. An empty
// device repolls every enumerated device.
func (e *Engine) RepollSMART(device string) { e.scheduler.RepollSMART(device) }
