// Package scheduler decides when drain passes run. Passes are triggered by
// user mutations and by connectivity changes; a pass that couldn't finish is
// rescheduled with exponential backoff so a dead backend isn't hammered.
package scheduler

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/XBurnsX/toutiebudget-sync/worker"
)

// DefaultBase is the first backoff delay after a pass that must be retried.
const DefaultBase = 15 * time.Minute

// DefaultMax caps the backoff delay.
const DefaultMax = 6 * time.Hour

// A Runner performs one drain pass. Usually a *worker.Worker.
type Runner interface {
	DoPass() worker.Outcome
}

// Scheduler runs drain passes one at a time. At most one pass is pending at
// any moment: scheduling while a pass is already pending replaces it, so a
// burst of mutations collapses into a single pass.
type Scheduler struct {
	Runner Runner
	Base   time.Duration
	Max    time.Duration

	// runMu serializes passes so two triggers never drain concurrently.
	runMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	retries uint32
	stopped bool
}

// New creates a Scheduler with the default backoff window.
func New(r Runner) *Scheduler {
	return &Scheduler{
		Runner: r,
		Base:   DefaultBase,
		Max:    DefaultMax,
	}
}

// Trigger schedules a drain pass to run immediately.
func (s *Scheduler) Trigger() {
	s.TriggerIn(0)
}

// TriggerIn schedules a drain pass after the given delay. A pass already
// pending is replaced, not queued behind.
func (s *Scheduler) TriggerIn(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.run)
}

// Cancel drops any pending pass without stopping the scheduler; a later
// Trigger schedules again.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.retries = 0
}

// Shutdown cancels any pending pass and waits for an in-flight pass to
// finish. The scheduler accepts no triggers afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	// wait out any pass that's mid-drain
	s.runMu.Lock()
	s.runMu.Unlock()
}

func (s *Scheduler) run() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	outcome := s.Runner.DoPass()
	switch outcome {
	case worker.OutcomeSuccess:
		s.mu.Lock()
		s.retries = 0
		s.mu.Unlock()
	case worker.OutcomeRetry:
		s.mu.Lock()
		s.retries++
		retries := s.retries
		s.mu.Unlock()
		delay := s.backoff(retries)
		go metrics.Increment("sync.scheduler.backoff")
		log.Printf("drain pass needs a retry, next attempt in %v (attempt %d)", delay, retries)
		s.TriggerIn(delay)
	case worker.OutcomeFailure:
		go metrics.Increment("sync.scheduler.pass_failure")
		log.Printf("drain pass failed, waiting for the next trigger")
	}
}

// backoff returns the delay before retry number n (1-based): Base doubling
// each attempt, capped at Max, with jitter so devices that went offline
// together don't all reconnect in the same second.
func (s *Scheduler) backoff(n uint32) time.Duration {
	d := time.Duration(float64(s.Base) * math.Pow(2, float64(n-1)))
	if d > s.Max || d < 0 {
		d = s.Max
	}
	return time.Duration(jitter(float64(d)))
}

// Jitter returns a value that's around the given val, but not exactly it.
// The jitter is randomly chosen between 0.8 and 1.2 times the given value,
// evenly distributed.
func jitter(val float64) float64 {
	return val*0.8 + rand.Float64()*0.2*2*val
}
