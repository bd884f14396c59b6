package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/persist"
	"github.com/ftahirops/diskmon/store"
)

// condition is one evaluated (subject, rule kind) verdict. SeverityNone
// conditions are not produced; absence within the evaluated scope means
// "clear".
type condition struct {
	subject  string
	kind     model.RuleKind
	severity model.Severity
	message  string
}

func (c condition) key() string { return c.subject + "/" + string(c.kind) }

// AlertEngine owns the active alert set and its lifecycle: fire, cooldown,
// acknowledge, resolve. It is the only component that mutates alert records.
type AlertEngine struct {
	mu     sync.Mutex
	active map[string]*model.Alert

	// lastNotified maps subject/kind/severity to the last dispatch time for
	// cooldown suppression.
	lastNotified map[string]time.Time

	// acked persists acknowledged condition keys across restarts.
	acked map[string]bool

	// lastScope remembers, per evaluation domain, the keys covered by the
	// previous pass, so a subject that vanished between polls still resolves.
	lastScope map[string]map[string]bool

	dispatcher *Dispatcher
	alertLog   *persist.AlertLog
	files      *persist.Files
	log        *zap.SugaredLogger

	now func() time.Time
}

// NewAlertEngine creates an alert engine. ackedKeys seeds acknowledgement
// state from persistence; alertLog receives resolved alerts.
func NewAlertEngine(dispatcher *Dispatcher, alertLog *persist.AlertLog, files *persist.Files, ackedKeys map[string]bool, log *zap.SugaredLogger) *AlertEngine {
	if ackedKeys == nil {
		ackedKeys = make(map[string]bool)
	}
	return &AlertEngine{
		active:       make(map[string]*model.Alert),
		lastNotified: make(map[string]time.Time),
		acked:        ackedKeys,
		lastScope:    make(map[string]map[string]bool),
		dispatcher:   dispatcher,
		alertLog:     alertLog,
		files:        files,
		log:          log,
		now:          time.Now,
	}
}

// ── Evaluation ───────────────────────────────────────────────────────

// deviceKinds are the rule kinds evaluated per device, split by the domain
// whose merge makes them evaluable.
var smartKinds = []model.RuleKind{model.RuleSmartStatus, model.RuleSectorCount, model.RuleThresholdTemp}
var ioKinds = []model.RuleKind{model.RuleThresholdUtil, model.RuleLatency}

// EvaluateSmart evaluates the SMART-derived rules for one device. Stale
// snapshots are never evaluated: existing alerts stay as they are and no new
// ones fire from old data.
func (e *AlertEngine) EvaluateSmart(cfg *config.Config, st store.DeviceState) {
	if st.Smart == nil || st.SmartStale {
		return
	}
	var conds []condition
	name := st.Device.Name
	smart := st.Smart
	thr := cfg.Alerts.Thresholds

	// Overall SMART verdict.
	switch smart.Status {
	case model.SmartFailed:
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleSmartStatus,
			severity: model.SeverityCrit,
			message:  "SMART health check FAILED",
		})
	case model.SmartWarning:
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleSmartStatus,
			severity: model.SeverityWarn,
			message:  smartWarningMessage(smart, st.SmartPrev),
		})
	default:
		// A pre-fail attribute that degraded since the previous poll is a
		// warning even while the overall verdict still reads Passed.
		if msg, ok := prefailDegradation(smart, st.SmartPrev); ok {
			conds = append(conds, condition{
				subject:  name,
				kind:     model.RuleSmartStatus,
				severity: model.SeverityWarn,
				message:  msg,
			})
		}
	}

	// Configured attribute rules (sector counts and friends). The worst
	// matching rule wins the single sector-count slot for the device.
	var worst *condition
	for _, rule := range cfg.Alerts.SmartRules {
		attr := smart.Attr(rule.Attr)
		if attr == nil || !rule.Matches(attr.RawValue) {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = fmt.Sprintf("%s raw value %d (rule: %s %d)", attr.Name, attr.RawValue, rule.Op, rule.Value)
		}
		sev := rule.SeverityLevel()
		if worst == nil || sev > worst.severity {
			worst = &condition{subject: name, kind: model.RuleSectorCount, severity: sev, message: msg}
		}
	}
	if worst != nil {
		conds = append(conds, *worst)
	}

	// Temperature against per-kind thresholds.
	if smart.HasTemp {
		warn, crit := thr.TempLevels(st.Device.Kind)
		t := smart.Temperature
		if crit > 0 && t >= crit {
			conds = append(conds, condition{
				subject:  name,
				kind:     model.RuleThresholdTemp,
				severity: model.SeverityCrit,
				message:  fmt.Sprintf("temperature %d°C at or above critical threshold %d°C", t, crit),
			})
		} else if warn > 0 && t >= warn {
			conds = append(conds, condition{
				subject:  name,
				kind:     model.RuleThresholdTemp,
				severity: model.SeverityWarn,
				message:  fmt.Sprintf("temperature %d°C at or above warning threshold %d°C", t, warn),
			})
		}
	}

	e.apply("smart/"+name, cfg.Alerts.Cooldown(), scopeKeys(name, smartKinds), conds)
}

// EvaluateIO evaluates the I/O-derived rules for one device.
func (e *AlertEngine) EvaluateIO(cfg *config.Config, st store.DeviceState) {
	if st.IO == nil || st.IOStale {
		return
	}
	var conds []condition
	name := st.Device.Name
	thr := cfg.Alerts.Thresholds
	io := st.IO

	if thr.IOUtilCritPct > 0 && io.UtilPct >= thr.IOUtilCritPct {
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleThresholdUtil,
			severity: model.SeverityCrit,
			message:  fmt.Sprintf("I/O utilisation %.0f%% at or above critical threshold %.0f%%", io.UtilPct, thr.IOUtilCritPct),
		})
	} else if thr.IOUtilWarnPct > 0 && io.UtilPct >= thr.IOUtilWarnPct {
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleThresholdUtil,
			severity: model.SeverityWarn,
			message:  fmt.Sprintf("I/O utilisation %.0f%% (sustained)", io.UtilPct),
		})
	}

	lat := io.MaxLatencyMs()
	if thr.LatencyCritMs > 0 && lat >= thr.LatencyCritMs {
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleLatency,
			severity: model.SeverityCrit,
			message:  fmt.Sprintf("I/O latency %.0fms at or above critical threshold %.0fms", lat, thr.LatencyCritMs),
		})
	} else if thr.LatencyWarnMs > 0 && lat >= thr.LatencyWarnMs {
		conds = append(conds, condition{
			subject:  name,
			kind:     model.RuleLatency,
			severity: model.SeverityWarn,
			message:  fmt.Sprintf("I/O latency %.0fms at or above warning threshold %.0fms", lat, thr.LatencyWarnMs),
		})
	}

	e.apply("io/"+name, cfg.Alerts.Cooldown(), scopeKeys(name, ioKinds), conds)
}

// EvaluateFilesystems evaluates space, inode, and fill-projection rules for
// every mount in one pass. Mounts that disappeared resolve their alerts.
func (e *AlertEngine) EvaluateFilesystems(cfg *config.Config, filesystems []model.FilesystemUsage) {
	thr := cfg.Alerts.Thresholds
	scope := make(map[string]bool)
	var conds []condition

	for _, fs := range filesystems {
		scope[fs.Mount+"/"+string(model.RuleThresholdFS)] = true

		sev := model.SeverityNone
		var msg string

		pct := fs.UsePct()
		switch {
		case thr.FilesystemCritPct > 0 && pct >= thr.FilesystemCritPct:
			sev, msg = model.SeverityCrit, fmt.Sprintf("%.0f%% full, critically low space (%s left)", pct, humanize.IBytes(fs.AvailBytes))
		case thr.FilesystemWarnPct > 0 && pct >= thr.FilesystemWarnPct:
			sev, msg = model.SeverityWarn, fmt.Sprintf("%.0f%% full (%s left)", pct, humanize.IBytes(fs.AvailBytes))
		}

		if ipct := fs.InodePct(); thr.InodeCritPct > 0 && ipct >= thr.InodeCritPct {
			if model.SeverityCrit > sev {
				sev, msg = model.SeverityCrit, fmt.Sprintf("inodes %.0f%% used, critically low", ipct)
			}
		} else if thr.InodeWarnPct > 0 && ipct >= thr.InodeWarnPct && sev < model.SeverityWarn {
			sev, msg = model.SeverityWarn, fmt.Sprintf("inodes %.0f%% used", ipct)
		}

		if fs.DaysUntilFull > 0 {
			if thr.FillDaysCrit > 0 && fs.DaysUntilFull <= thr.FillDaysCrit && sev < model.SeverityCrit {
				sev, msg = model.SeverityCrit, fmt.Sprintf("projected full in %.1f days at %s/s", fs.DaysUntilFull, humanize.IBytes(uint64(fs.FillRateBps)))
			} else if thr.FillDaysWarn > 0 && fs.DaysUntilFull <= thr.FillDaysWarn && sev < model.SeverityWarn {
				sev, msg = model.SeverityWarn, fmt.Sprintf("projected full in %.1f days at %s/s", fs.DaysUntilFull, humanize.IBytes(uint64(fs.FillRateBps)))
			}
		}

		if sev != model.SeverityNone {
			conds = append(conds, condition{subject: fs.Mount, kind: model.RuleThresholdFS, severity: sev, message: msg})
		}
	}

	e.apply("fs", cfg.Alerts.Cooldown(), scope, conds)
}

// EvaluateNFS evaluates mount latency rules for every NFS mount.
func (e *AlertEngine) EvaluateNFS(cfg *config.Config, mounts []model.NFSMount) {
	thr := cfg.Alerts.Thresholds
	scope := make(map[string]bool)
	var conds []condition

	for _, m := range mounts {
		scope[m.Mount+"/"+string(model.RuleLatency)] = true
		rtt := m.MaxRTTMs()
		if thr.NFSRttCritMs > 0 && rtt >= thr.NFSRttCritMs {
			conds = append(conds, condition{
				subject:  m.Mount,
				kind:     model.RuleLatency,
				severity: model.SeverityCrit,
				message:  fmt.Sprintf("NFS RTT %.1fms at or above critical threshold %.0fms", rtt, thr.NFSRttCritMs),
			})
		} else if thr.NFSRttWarnMs > 0 && rtt >= thr.NFSRttWarnMs {
			conds = append(conds, condition{
				subject:  m.Mount,
				kind:     model.RuleLatency,
				severity: model.SeverityWarn,
				message:  fmt.Sprintf("NFS RTT %.1fms at or above warning threshold %.0fms", rtt, thr.NFSRttWarnMs),
			})
		}
	}

	e.apply("nfs", cfg.Alerts.Cooldown(), scope, conds)
}

// ResolveSubject clears every active alert for a subject (hotplug removal).
func (e *AlertEngine) ResolveSubject(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, a := range e.active {
		if a.Subject == subject {
			e.resolveLocked(key, a)
		}
	}
}

func scopeKeys(subject string, kinds []model.RuleKind) map[string]bool {
	scope := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		scope[subject+"/"+string(k)] = true
	}
	return scope
}

func smartWarningMessage(smart, prev *model.SmartSnapshot) string {
	for _, attr := range smart.Attributes {
		if attr.AtRisk() {
			return fmt.Sprintf("pre-fail attr %s value %d near threshold %d", attr.Name, attr.Value, attr.Thresh)
		}
	}
	if n := smart.Nvme; n != nil {
		if n.CriticalWarning != 0 {
			return fmt.Sprintf("NVMe critical warning byte 0x%02X", n.CriticalWarning)
		}
		if n.MediaErrors > 0 {
			return fmt.Sprintf("%d uncorrectable media error(s)", n.MediaErrors)
		}
		if n.AvailableSparePct < n.AvailableSpareThreshold {
			return fmt.Sprintf("NVMe spare %d%% below threshold %d%%", n.AvailableSparePct, n.AvailableSpareThreshold)
		}
	}
	if msg, ok := prefailDegradation(smart, prev); ok {
		return msg
	}
	return "SMART status degraded to WARN"
}

// prefailDegradation reports a pre-fail attribute whose normalized value
// dropped since the previous snapshot.
func prefailDegradation(smart, prev *model.SmartSnapshot) (string, bool) {
	if prev == nil {
		return "", false
	}
	for _, cur := range smart.Attributes {
		if !cur.Prefail {
			continue
		}
		if p := prev.Attr(cur.ID); p != nil && cur.Value < p.Value {
			return fmt.Sprintf("pre-fail attr %s degraded %d → %d", cur.Name, p.Value, cur.Value), true
		}
	}
	return "", false
}

// ── State machine ────────────────────────────────────────────────────

// apply reconciles the evaluated conditions against the active set. scope
// lists every (subject, kind) key this evaluation covered; covered keys with
// no condition transition to clear. The previous pass's scope for the same
// domain also counts as covered, so an alert whose subject disappeared from
// the reading (an unmounted filesystem, a gone NFS share) still resolves.
func (e *AlertEngine) apply(domain string, cooldown time.Duration, scope map[string]bool, conds []condition) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.lastScope[domain]
	e.lastScope[domain] = scope

	seen := make(map[string]bool, len(conds))
	for _, c := range conds {
		key := c.key()
		seen[key] = true

		cur, ok := e.active[key]
		if !ok {
			a := &model.Alert{
				ID:           uuid.NewString(),
				Subject:      c.subject,
				Kind:         c.kind,
				Severity:     c.severity,
				Message:      c.message,
				FiredAt:      now,
				LastFiredAt:  now,
				Acknowledged: e.acked[key],
			}
			e.active[key] = a
			e.notifyLocked(a, now, cooldown, false)
			continue
		}

		cur.LastFiredAt = now
		cur.Message = c.message
		if c.severity > cur.Severity {
			// Escalation dispatches immediately; cooldown never blocks a
			// transition to a higher severity.
			cur.Severity = c.severity
			e.notifyLocked(cur, now, cooldown, true)
		} else if c.severity < cur.Severity {
			cur.Severity = c.severity
			e.notifyLocked(cur, now, cooldown, false)
		}
	}

	// Covered keys that produced no condition have cleared.
	for key, a := range e.active {
		if (scope[key] || prev[key]) && !seen[key] {
			e.resolveLocked(key, a)
		}
	}
}

// notifyLocked dispatches unless suppressed by the cooldown window for this
// (subject, kind, severity). Escalations bypass the check.
func (e *AlertEngine) notifyLocked(a *model.Alert, now time.Time, cooldown time.Duration, escalation bool) {
	sevKey := a.Key() + "/" + a.Severity.String()
	if !escalation && cooldown > 0 {
		if last, ok := e.lastNotified[sevKey]; ok && now.Sub(last) < cooldown {
			return
		}
	}
	e.lastNotified[sevKey] = now
	e.dispatcher.Dispatch(*a)
}

// resolveLocked moves an alert to the persistent log and drops it from the
// active set. Acknowledgement state for the key is reset so the next cycle
// starts unacknowledged.
func (e *AlertEngine) resolveLocked(key string, a *model.Alert) {
	a.Resolved = true
	a.ResolvedAt = e.now()
	delete(e.active, key)
	if e.acked[key] {
		delete(e.acked, key)
		e.persistAckedLocked()
	}
	if err := e.alertLog.Append(*a); err != nil {
		e.log.Warnw("alert log append failed", "subject", a.Subject, "kind", a.Kind, "error", err)
	}
}

func (e *AlertEngine) persistAckedLocked() {
	if e.files == nil {
		return
	}
	if err := e.files.SaveAckedKeys(e.acked); err != nil {
		e.log.Warnw("acknowledge persistence failed", "error", err)
	}
}

// ── Commands and queries ─────────────────────────────────────────────

// Acknowledge marks one active alert acknowledged. Acknowledgement never
// alters the clear/warn/crit state; it only suppresses prominence.
func (e *AlertEngine) Acknowledge(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, a := range e.active {
		if a.ID == id {
			a.Acknowledged = true
			e.acked[key] = true
			e.persistAckedLocked()
			return true
		}
	}
	return false
}

// AcknowledgeAll acknowledges every currently active alert and returns how
// many were newly acknowledged.
func (e *AlertEngine) AcknowledgeAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for key, a := range e.active {
		if !a.Acknowledged {
			a.Acknowledged = true
			e.acked[key] = true
			n++
		}
	}
	if n > 0 {
		e.persistAckedLocked()
	}
	return n
}

// Active returns copies of the active alerts, crit first, then by subject.
func (e *AlertEngine) Active() []model.Alert {
	e.mu.Lock()
	out := make([]model.Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// History reads the persistent log of resolved alerts.
func (e *AlertEngine) History(filter persist.AlertFilter) ([]model.Alert, error) {
	return e.alertLog.Read(filter)
}
