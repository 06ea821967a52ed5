package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/XBurnsX/toutiebudget-sync/test"
	"github.com/XBurnsX/toutiebudget-sync/worker"
)

// fakeRunner returns scripted outcomes in order, then OutcomeSuccess.
type fakeRunner struct {
	mu       sync.Mutex
	outcomes []worker.Outcome
	calls    int
	ran      chan struct{}
}

func newFakeRunner(outcomes ...worker.Outcome) *fakeRunner {
	return &fakeRunner{outcomes: outcomes, ran: make(chan struct{}, 100)}
}

func (f *fakeRunner) DoPass() worker.Outcome {
	f.mu.Lock()
	f.calls++
	var out worker.Outcome = worker.OutcomeSuccess
	if len(f.outcomes) > 0 {
		out = f.outcomes[0]
		f.outcomes = f.outcomes[1:]
	}
	f.mu.Unlock()
	f.ran <- struct{}{}
	return out
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForPass(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a drain pass to run")
	}
}

func newTestScheduler(r Runner) *Scheduler {
	s := New(r)
	s.Base = 5 * time.Millisecond
	s.Max = 50 * time.Millisecond
	return s
}

func TestTriggerRunsPass(t *testing.T) {
	t.Parallel()
	r := newFakeRunner()
	s := newTestScheduler(r)
	defer s.Shutdown()
	s.Trigger()
	waitForPass(t, r)
	test.AssertEquals(t, r.callCount(), 1)
}

func TestSuccessDoesNotReschedule(t *testing.T) {
	t.Parallel()
	r := newFakeRunner(worker.OutcomeSuccess)
	s := newTestScheduler(r)
	defer s.Shutdown()
	s.Trigger()
	waitForPass(t, r)
	time.Sleep(50 * time.Millisecond)
	test.AssertEquals(t, r.callCount(), 1)
}

func TestRetryReschedulesUntilSuccess(t *testing.T) {
	t.Parallel()
	r := newFakeRunner(worker.OutcomeRetry, worker.OutcomeRetry, worker.OutcomeSuccess)
	s := newTestScheduler(r)
	defer s.Shutdown()
	s.Trigger()
	waitForPass(t, r)
	waitForPass(t, r)
	waitForPass(t, r)
	test.AssertEquals(t, r.callCount(), 3)
	// let run() finish bookkeeping after the last pass
	time.Sleep(20 * time.Millisecond)
	s.mu.Lock()
	retries := s.retries
	s.mu.Unlock()
	test.AssertEquals(t, retries, uint32(0))
}

func TestFailureDoesNotReschedule(t *testing.T) {
	t.Parallel()
	r := newFakeRunner(worker.OutcomeFailure)
	s := newTestScheduler(r)
	defer s.Shutdown()
	s.Trigger()
	waitForPass(t, r)
	time.Sleep(50 * time.Millisecond)
	test.AssertEquals(t, r.callCount(), 1)
}

func TestPendingTriggerIsReplaced(t *testing.T) {
	t.Parallel()
	r := newFakeRunner()
	s := newTestScheduler(r)
	defer s.Shutdown()
	// far-future pass gets replaced by an immediate one
	s.TriggerIn(time.Hour)
	s.Trigger()
	waitForPass(t, r)
	time.Sleep(50 * time.Millisecond)
	test.AssertEquals(t, r.callCount(), 1)
}

func TestCancelDropsPendingPass(t *testing.T) {
	t.Parallel()
	r := newFakeRunner()
	s := newTestScheduler(r)
	defer s.Shutdown()
	s.TriggerIn(20 * time.Millisecond)
	s.Cancel()
	time.Sleep(80 * time.Millisecond)
	test.AssertEquals(t, r.callCount(), 0)
}

func TestShutdownRejectsTriggers(t *testing.T) {
	t.Parallel()
	r := newFakeRunner()
	s := newTestScheduler(r)
	s.Shutdown()
	s.Trigger()
	time.Sleep(30 * time.Millisecond)
	test.AssertEquals(t, r.callCount(), 0)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()
	s := New(nil)
	for i := 0; i < 100; i++ {
		first := s.backoff(1)
		test.Assert(t, first >= time.Duration(float64(DefaultBase)*0.8), "first backoff too short")
		test.Assert(t, first <= time.Duration(float64(DefaultBase)*1.2), "first backoff too long")
		second := s.backoff(2)
		test.Assert(t, second >= time.Duration(float64(2*DefaultBase)*0.8), "second backoff too short")
		capped := s.backoff(20)
		test.Assert(t, capped <= time.Duration(float64(DefaultMax)*1.2), "backoff should cap at Max")
	}
}
