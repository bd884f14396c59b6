package model

import "time"

// Severity of an alert condition.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarn
	SeverityCrit
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "WARN"
	case SeverityCrit:
		return "CRIT"
	default:
		return "CLEAR"
	}
}

// RuleKind is the closed set of alert rule kinds. Evaluation dispatches on it
// exhaustively; there is no open-ended rule registration.
type RuleKind string

const (
	RuleThresholdTemp RuleKind = "threshold-temp"
	RuleThresholdUtil RuleKind = "threshold-util"
	RuleThresholdFS   RuleKind = "threshold-fs"
	RuleSmartStatus   RuleKind = "smart-status"
	RuleSectorCount   RuleKind = "sector-count"
	RuleLatency       RuleKind = "latency"
)

// RuleKinds lists every rule kind, for exhaustive iteration.
var RuleKinds = []RuleKind{
	RuleThresholdTemp,
	RuleThresholdUtil,
	RuleThresholdFS,
	RuleSmartStatus,
	RuleSectorCount,
	RuleLatency,
}

// Alert is one logical alert for a (subject, rule kind) pair. The subject is
// a device name for device rules or a mount point for filesystem rules.
// Re-violation while the alert is unresolved refreshes LastFiredAt; a new
// Alert is only created after the previous one resolved.
type Alert struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Kind         RuleKind  `json:"kind"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	FiredAt      time.Time `json:"fired_at"`
	LastFiredAt  time.Time `json:"last_fired_at"`
	Acknowledged bool      `json:"acknowledged"`
	Resolved     bool      `json:"resolved"`
	ResolvedAt   time.Time `json:"resolved_at,omitempty"`
}

// Key is the stable identity of the alert condition, shared by acknowledge
// persistence and cooldown bookkeeping.
func (a Alert) Key() string {
	return a.Subject + "/" + string(a.Kind)
}
