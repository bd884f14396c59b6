package model

import "time"

// SelfTestKind selects the drive-internal diagnostic routine.
type SelfTestKind int

const (
	SelfTestShort SelfTestKind = iota
	SelfTestLong
)

func (k SelfTestKind) String() string {
	if k == SelfTestLong {
		return "long"
	}
	return "short"
}

// SelfTestState is the lifecycle state of a tracked self-test.
type SelfTestState int

const (
	SelfTestIdle SelfTestState = iota
	SelfTestRunning
	SelfTestPassed
	SelfTestFailed
	SelfTestAborted
	// SelfTestTimedOut means the tracker gave up waiting; the test may still
	// be running on-device and a later status poll can supersede this.
	SelfTestTimedOut
)

func (s SelfTestState) String() string {
	switch s {
	case SelfTestRunning:
		return "running"
	case SelfTestPassed:
		return "passed"
	case SelfTestFailed:
		return "failed"
	case SelfTestAborted:
		return "aborted"
	case SelfTestTimedOut:
		return "timed-out"
	default:
		return "idle"
	}
}

// Terminal reports whether the state is a completed outcome.
func (s SelfTestState) Terminal() bool {
	return s == SelfTestPassed || s == SelfTestFailed || s == SelfTestAborted
}

// SelfTestStatus is the tracked status of the most recent self-test on a
// device, updated on every status poll.
type SelfTestStatus struct {
	Kind        SelfTestKind  `json:"kind"`
	State       SelfTestState `json:"state"`
	PercentDone int           `json:"percent_done"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

// SelfTestEntry is one record from a device's self-test log, most recent last.
type SelfTestEntry struct {
	TestType string `json:"test_type"`
	Status   string `json:"status"`
	Hours    uint64 `json:"power_on_hours"`
	Passed   bool   `json:"passed"`
}
