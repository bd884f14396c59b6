package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/store"
)

type fakeSelfTest struct {
	startErr error
	status   model.SelfTestStatus
}

func (f *fakeSelfTest) StartSelfTest(_ context.Context, _ string, _ model.SelfTestKind) error {
	return f.startErr
}

func (f *fakeSelfTest) SelfTestStatus(_ context.Context, _ string) (model.SelfTestStatus, error) {
	return f.status, nil
}

func (f *fakeSelfTest) SelfTestLog(_ context.Context, _ string) ([]model.SelfTestEntry, error) {
	return []model.SelfTestEntry{{TestType: "Short offline", Status: "Completed without error", Passed: true}}, nil
}

func newTestSelfTest(t *testing.T, p provider.SelfTest) (*SelfTestScheduler, *store.Store) {
	t.Helper()
	st := store.New()
	st.UpsertDevice(model.Device{Name: "sda", Kind: model.KindHDD})
	return NewSelfTestScheduler(p, st, zap.NewNop().Sugar()), st
}

func TestScheduleUnknownDevice(t *testing.T) {
	s, _ := newTestSelfTest(t, &fakeSelfTest{})
	_, err := s.Schedule(context.Background(), "sdz", model.SelfTestShort, false, time.Minute)
	if err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestScheduleNilProvider(t *testing.T) {
	s, _ := newTestSelfTest(t, nil)
	_, err := s.Schedule(context.Background(), "sda", model.SelfTestShort, false, time.Minute)
	if !provider.IsUnavailable(err) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestScheduleStartFailureClearsTracking(t *testing.T) {
	s, _ := newTestSelfTest(t, &fakeSelfTest{startErr: errors.New("drive refused")})
	if _, err := s.Schedule(context.Background(), "sda", model.SelfTestShort, false, time.Minute); err == nil {
		t.Fatal("expected start error")
	}
	if s.Running("sda") {
		t.Fatal("failed start left the device marked running")
	}
}

func TestScheduleTracksAndGuardsDuplicates(t *testing.T) {
	s, st := newTestSelfTest(t, &fakeSelfTest{status: model.SelfTestStatus{State: model.SelfTestRunning, PercentDone: 10}})

	status, err := s.Schedule(context.Background(), "sda", model.SelfTestShort, false, time.Hour)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if status.State != model.SelfTestRunning {
		t.Fatalf("state = %v, want running", status.State)
	}
	if !s.Running("sda") {
		t.Fatal("device not tracked after start")
	}
	if cur, _ := st.Snapshot("sda"); cur.SelfTest.State != model.SelfTestRunning {
		t.Fatal("store not updated with running status")
	}

	if _, err := s.Schedule(context.Background(), "sda", model.SelfTestLong, false, time.Hour); !errors.Is(err, ErrSelfTestRunning) {
		t.Fatalf("duplicate start: got %v, want ErrSelfTestRunning", err)
	}
}

// A wait-mode caller that hits its timeout gets the still-running status, not
// an error; tracking continues in the background.
func TestScheduleWaitTimeoutReturnsRunning(t *testing.T) {
	s, _ := newTestSelfTest(t, &fakeSelfTest{status: model.SelfTestStatus{State: model.SelfTestRunning, PercentDone: 40}})

	start := time.Now()
	status, err := s.Schedule(context.Background(), "sda", model.SelfTestLong, true, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("wait did not respect the timeout")
	}
	if status.State != model.SelfTestRunning {
		t.Fatalf("state = %v, want running at timeout", status.State)
	}
	if !s.Running("sda") {
		t.Fatal("background tracking stopped when the waiter timed out")
	}
}

// Long after a wait-mode caller gave up, the tracker's polls must keep the
// store reporting the test in progress, not flip it to a timed-out state.
func TestWaitTimeoutKeepsTracking(t *testing.T) {
	s, st := newTestSelfTest(t, &fakeSelfTest{status: model.SelfTestStatus{State: model.SelfTestRunning, PercentDone: 40}})
	s.shortPoll = 10 * time.Millisecond

	if _, err := s.Schedule(context.Background(), "sda", model.SelfTestShort, true, 30*time.Millisecond); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Several poll cycles past the wait timeout.
	time.Sleep(150 * time.Millisecond)

	cur, _ := st.Snapshot("sda")
	if cur.SelfTest.State != model.SelfTestRunning {
		t.Fatalf("later query: state = %v, want running", cur.SelfTest.State)
	}
	if cur.SelfTest.PercentDone != 40 {
		t.Fatalf("later query: progress = %d, want 40", cur.SelfTest.PercentDone)
	}
	if !s.Running("sda") {
		t.Fatal("tracker exited after the wait timeout")
	}
}
