package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_AfterFires(t *testing.T) {
	sched := NewScheduler()
	fired := make(chan struct{})

	sched.After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("After() callback never fired")
	}
}

func TestScheduler_AfterStopPreventsCallback(t *testing.T) {
	sched := NewScheduler()
	var fired atomic.Bool

	h := sched.After(20*time.Millisecond, func() { fired.Store(true) })
	h.Stop()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("callback fired after Stop()")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	sched := NewScheduler()

	h := sched.After(10*time.Millisecond, func() {})
	h.Stop()
	h.Stop()
	h.Stop()

	h2 := sched.Every(10*time.Millisecond, func() {})
	h2.Stop()
	h2.Stop()
}

func TestScheduler_EveryTicksUntilStopped(t *testing.T) {
	sched := NewScheduler()
	var ticks atomic.Int64

	h := sched.Every(5*time.Millisecond, func() { ticks.Add(1) })

	time.Sleep(60 * time.Millisecond)
	h.Stop()
	seen := ticks.Load()
	if seen < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", seen)
	}

	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != seen {
		t.Error("ticks continued after Stop()")
	}
}

func TestScheduler_CallbackCanStopOwnHandle(t *testing.T) {
	sched := NewScheduler()
	var (
		mu sync.Mutex
		h  TimerHandle
		n  int
	)

	mu.Lock()
	h = sched.Every(5*time.Millisecond, func() {
		mu.Lock()
		defer mu.Unlock()
		n++
		h.Stop()
	})
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if n != 1 {
		t.Errorf("expected exactly 1 tick after self-stop, got %d", n)
	}
}

// manualScheduler drives the engine without wall-clock time. Tests fire
// scheduled callbacks by hand.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	fn      func()
	every   bool
	stopped bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (s *manualScheduler) After(d time.Duration, fn func()) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &manualTimer{d: d, fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *manualScheduler) Every(d time.Duration, fn func()) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &manualTimer{d: d, fn: fn, every: true}
	s.timers = append(s.timers, timer)
	return timer
}

func (t *manualTimer) Stop() { t.stopped = true }

// Fire runs the callback unless the timer was stopped, mirroring the
// production guarantee.
func (t *manualTimer) Fire() {
	if t.stopped {
		return
	}
	t.fn()
}

// last returns the most recently scheduled timer.
func (s *manualScheduler) last() *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// pendingCount reports how many scheduled timers were never stopped.
func (s *manualScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, timer := range s.timers {
		if !timer.stopped {
			n++
		}
	}
	return n
}

func TestManualScheduler_FireRespectsStop(t *testing.T) {
	sched := newManualScheduler()
	fired := false

	h := sched.After(time.Second, func() { fired = true })
	h.Stop()
	sched.last().Fire()

	if fired {
		t.Error("stopped manual timer still fired")
	}
}
