package timer

import (
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the display refresh cadence of a running timer.
const DefaultInterval = 100 * time.Millisecond

// Observer receives the running elapsed time at every tick. It runs on the
// timer's goroutine and must not call Stop.
type Observer func(elapsed time.Duration)

// SessionTimer is a stopwatch with a periodic observer.
type SessionTimer struct {
	clock    Clock
	interval time.Duration
	observer Observer

	mu      sync.Mutex
	start   time.Time
	end     time.Time
	running bool
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// NewSession creates a stopped timer. A nil clock means the wall clock.
func NewSession(clock Clock, interval time.Duration, observer Observer) *SessionTimer {
	if clock == nil {
		clock = Real{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SessionTimer{clock: clock, interval: interval, observer: observer}
}

// Start records the start instant and begins ticking. Starting a running
// timer restarts it.
func (t *SessionTimer) Start() {
	t.Stop()

	t.mu.Lock()
	t.start = t.clock.Now()
	t.end = time.Time{}
	t.running = true
	t.started = true
	if t.observer != nil {
		t.quit = make(chan struct{})
		t.done = make(chan struct{})
		go t.loop(t.start, t.quit, t.done)
	}
	t.mu.Unlock()
}

func (t *SessionTimer) loop(start time.Time, quit, done chan struct{}) {
	defer close(done)
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C():
			select {
			case <-quit:
				return
			default:
			}
			t.observer(t.clock.Now().Sub(start))
		}
	}
}

// Stop freezes the elapsed time and returns it. No observer call happens
// after Stop returns. Stopping a stopped timer is a no-op.
func (t *SessionTimer) Stop() time.Duration {
	t.mu.Lock()
	if !t.running {
		elapsed := t.elapsedLocked()
		t.mu.Unlock()
		return elapsed
	}
	t.end = t.clock.Now()
	t.running = false
	quit, done := t.quit, t.done
	t.quit, t.done = nil, nil
	elapsed := t.elapsedLocked()
	t.mu.Unlock()

	if quit != nil {
		close(quit)
		<-done
	}
	return elapsed
}

// Reset stops the timer and zeroes it.
func (t *SessionTimer) Reset() {
	t.Stop()
	t.mu.Lock()
	t.start, t.end = time.Time{}, time.Time{}
	t.started = false
	t.mu.Unlock()
}

// Elapsed is now-start while running, end-start once stopped, and zero
// before the first Start.
func (t *SessionTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *SessionTimer) elapsedLocked() time.Duration {
	switch {
	case !t.started:
		return 0
	case t.running:
		return t.clock.Now().Sub(t.start)
	default:
		return t.end.Sub(t.start)
	}
}

// Running reports whether the timer is ticking.
func (t *SessionTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Display formats a duration as seconds with one decimal, e.g. "12.3".
func Display(d time.Duration) string {
	return fmt.Sprintf("%.1f", d.Seconds())
}
