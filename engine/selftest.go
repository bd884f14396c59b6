package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/store"
)

// Self-test progress poll cadences; long tests can run for hours, so their
// tracker polls far less often.
const (
	shortTestPollInterval = 30 * time.Second
	longTestPollInterval  = 120 * time.Second
)

// Tracking limits bound how long a tracker keeps polling a drive that never
// reports a terminal state. They are deliberately far above any plausible
// test duration and unrelated to a wait-mode caller's timeout.
const (
	shortTestTrackingLimit = 2 * time.Hour
	longTestTrackingLimit  = 24 * time.Hour
)

// ErrSelfTestRunning is returned when a start is requested while a test is
// already being tracked on the device.
var ErrSelfTestRunning = errors.New("self-test already running")

// SelfTestScheduler starts drive self-tests and tracks their progress into
// the store. One test per device at a time; tracking is independent of the
// poll loops and survives config reloads.
type SelfTestScheduler struct {
	provider provider.SelfTest
	store    *store.Store
	log      *zap.SugaredLogger

	mu      sync.Mutex
	running map[string]chan model.SelfTestStatus // device -> completion broadcast

	shortPoll time.Duration
	longPoll  time.Duration
}

// NewSelfTestScheduler creates a scheduler. provider may be nil, in which
// case every start fails with ErrUnavailable.
func NewSelfTestScheduler(p provider.SelfTest, s *store.Store, log *zap.SugaredLogger) *SelfTestScheduler {
	return &SelfTestScheduler{
		provider:  p,
		store:     s,
		log:       log,
		running:   make(map[string]chan model.SelfTestStatus),
		shortPoll: shortTestPollInterval,
		longPoll:  longTestPollInterval,
	}
}

// Schedule starts a self-test on the device and launches a tracker goroutine.
// When wait is true, Schedule blocks until the test reaches a terminal state
// or timeout elapses; on timeout the returned status reports the test still
// running (not an error). timeout bounds only the wait: the tracker keeps
// polling in the background until the test finishes, so later status queries
// continue to show progress.
func (s *SelfTestScheduler) Schedule(ctx context.Context, device string, kind model.SelfTestKind, wait bool, timeout time.Duration) (model.SelfTestStatus, error) {
	if s.provider == nil {
		return model.SelfTestStatus{}, provider.Unavailablef("self-test provider")
	}
	if !s.store.Has(device) {
		return model.SelfTestStatus{}, fmt.Errorf("unknown device %q", device)
	}

	s.mu.Lock()
	if _, busy := s.running[device]; busy {
		s.mu.Unlock()
		return model.SelfTestStatus{}, fmt.Errorf("%w on %s", ErrSelfTestRunning, device)
	}
	done := make(chan model.SelfTestStatus, 1)
	s.running[device] = done
	s.mu.Unlock()

	if err := s.provider.StartSelfTest(ctx, device, kind); err != nil {
		s.mu.Lock()
		delete(s.running, device)
		s.mu.Unlock()
		return model.SelfTestStatus{}, fmt.Errorf("start %s self-test on %s: %w", kind, device, err)
	}

	now := time.Now()
	status := model.SelfTestStatus{
		Kind:      kind,
		State:     model.SelfTestRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.store.SetSelfTest(device, status)
	s.log.Infow("self-test started", "device", device, "kind", kind.String())

	go s.track(device, kind, done)

	if !wait {
		return status, nil
	}

	select {
	case final := <-done:
		return final, nil
	case <-ctx.Done():
		return status, ctx.Err()
	case <-time.After(timeout):
		// The tracker keeps going; the caller just stopped waiting.
		if cur, ok := s.store.Snapshot(device); ok {
			return cur.SelfTest, nil
		}
		return status, nil
	}
}

// Running reports whether a test is currently tracked on the device.
func (s *SelfTestScheduler) Running(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[device]
	return ok
}

// track polls self-test progress until a terminal state, committing every
// observation to the store. The per-kind tracking limit is a last-resort
// stop for drives that never report completion.
func (s *SelfTestScheduler) track(device string, kind model.SelfTestKind, done chan model.SelfTestStatus) {
	interval, limit := s.shortPoll, shortTestTrackingLimit
	if kind == model.SelfTestLong {
		interval, limit = s.longPoll, longTestTrackingLimit
	}
	deadline := time.Now().Add(limit)

	defer func() {
		s.mu.Lock()
		delete(s.running, device)
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		status, err := s.provider.SelfTestStatus(ctx, device)
		cancel()
		now := time.Now()

		if err != nil {
			s.log.Warnw("self-test status poll failed", "device", device, "error", err)
		} else {
			status.Kind = kind
			status.UpdatedAt = now
			s.store.SetSelfTest(device, status)
			if status.State.Terminal() {
				s.finish(device, status, done)
				return
			}
		}

		if now.After(deadline) {
			status = model.SelfTestStatus{Kind: kind, State: model.SelfTestTimedOut, UpdatedAt: now}
			s.store.SetSelfTest(device, status)
			s.log.Warnw("self-test tracking timed out", "device", device, "kind", kind.String())
			done <- status
			return
		}
	}
}

func (s *SelfTestScheduler) finish(device string, status model.SelfTestStatus, done chan model.SelfTestStatus) {
	s.log.Infow("self-test finished", "device", device, "state", status.State.String())

	// Refresh the on-drive log so the outcome shows up immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if entries, err := s.provider.SelfTestLog(ctx, device); err == nil {
		s.store.SetSelfTestLog(device, entries)
	}

	done <- status
}
