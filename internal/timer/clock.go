// Package timer provides the session stopwatch used by timed tests and the
// clock abstraction that lets tests drive time by hand.
package timer

import (
	"sync"
	"time"
)

// Clock is the source of time for timers and recorders.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	NewTimer(d time.Duration) Timer
}

// Ticker delivers ticks at a fixed period until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer fires once.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

func (Real) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// Manual is a Clock that only moves when Advance is called.
type Manual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	period   time.Duration
	ch       chan time.Time
	active   bool
}

// NewManual returns a manual clock set to start.
func NewManual(start time.Time) *Manual {
	m := &Manual{now: start}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	return &manualTicker{m: m, w: m.add(d, d)}
}

func (m *Manual) NewTimer(d time.Duration) Timer {
	return &manualTimer{m: m, w: m.add(d, 0)}
}

func (m *Manual) add(d, period time.Duration) *waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &waiter{deadline: m.now.Add(d), period: period, ch: make(chan time.Time, 1), active: true}
	m.waiters = append(m.waiters, w)
	m.cond.Broadcast()
	return w
}

// Advance moves the clock forward and fires every due timer and ticker.
// Like time.Ticker, a ticker whose previous tick was not received drops
// the new one.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	live := m.waiters[:0]
	for _, w := range m.waiters {
		for w.active && !w.deadline.After(m.now) {
			select {
			case w.ch <- w.deadline:
			default:
			}
			if w.period > 0 {
				w.deadline = w.deadline.Add(w.period)
			} else {
				w.active = false
			}
		}
		if w.active {
			live = append(live, w)
		}
	}
	m.waiters = live
	m.cond.Broadcast()
}

// BlockUntil waits until at least n timers or tickers are pending.
func (m *Manual) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.waiters) < n {
		m.cond.Wait()
	}
}

// Pending reports the number of live timers and tickers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *Manual) remove(w *waiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasActive := w.active
	w.active = false
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	m.cond.Broadcast()
	return wasActive
}

type manualTicker struct {
	m *Manual
	w *waiter
}

func (t *manualTicker) C() <-chan time.Time { return t.w.ch }
func (t *manualTicker) Stop()               { t.m.remove(t.w) }

type manualTimer struct {
	m *Manual
	w *waiter
}

func (t *manualTimer) C() <-chan time.Time { return t.w.ch }
func (t *manualTimer) Stop() bool          { return t.m.remove(t.w) }
