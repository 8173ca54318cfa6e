package game

import (
	"sync"
	"time"
)

// Scheduler is the single source of time for the round engine. Every
// lifecycle transition is driven through it so tests can substitute a
// manual implementation and run rounds without wall-clock sleeps.
type Scheduler interface {
	// After runs fn once after d.
	After(d time.Duration, fn func()) TimerHandle
	// Every runs fn repeatedly at interval d until the handle is stopped.
	Every(d time.Duration, fn func()) TimerHandle
}

// TimerHandle cancels a scheduled callback. Stop is idempotent and
// guarantees fn is never invoked again, including firings already queued
// by the runtime but not yet executed.
type TimerHandle interface {
	Stop()
}

type clockScheduler struct{}

// NewScheduler returns the production Scheduler backed by the runtime timers.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

type timerHandle struct {
	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
}

func (h *timerHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.ticker != nil {
		h.ticker.Stop()
		close(h.done)
	}
}

// guard runs fn only while the handle is still live. A firing that was
// already queued when Stop ran fails the check and is dropped. The lock is
// released before fn so a callback may stop its own handle.
func (h *timerHandle) guard(fn func()) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	fn()
}

func (clockScheduler) After(d time.Duration, fn func()) TimerHandle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(d, func() { h.guard(fn) })
	return h
}

func (clockScheduler) Every(d time.Duration, fn func()) TimerHandle {
	h := &timerHandle{done: make(chan struct{})}
	h.ticker = time.NewTicker(d)
	go func() {
		for {
			select {
			case <-h.ticker.C:
				h.guard(fn)
			case <-h.done:
				return
			}
		}
	}()
	return h
}
