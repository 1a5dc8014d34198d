package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timers and tickers fire only from Advance.
type Fake struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*fakeTimer
	tickers   []*fakeTicker
	requested []time.Duration
}

// NewFake returns a Fake clock starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer registers a one-shot timer due at Now()+d.
func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, due: f.now.Add(d), ch: make(chan time.Time, 1), active: true}
	f.timers = append(f.timers, t)
	f.requested = append(f.requested, d)
	return t
}

// NewTicker registers a ticker firing every d.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, period: d, next: f.now.Add(d), ch: make(chan time.Time, 1), active: true}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves time forward by d and fires every timer and ticker that came due.
// Tick delivery drops when the receiver has not drained the previous tick, like time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)

	for _, t := range f.timers {
		if t.active && !t.due.After(f.now) {
			t.active = false
			select {
			case t.ch <- f.now:
			default:
			}
		}
	}
	for _, t := range f.tickers {
		for t.active && !t.next.After(f.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// PendingTimers returns the number of timers that are neither fired nor stopped.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if t.active {
			n++
		}
	}
	return n
}

// ActiveTickers returns the number of tickers not yet stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if t.active {
			n++
		}
	}
	return n
}

// Requested returns every duration passed to NewTimer, in order.
func (f *Fake) Requested() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.requested))
	copy(out, f.requested)
	return out
}

type fakeTimer struct {
	clock  *Fake
	due    time.Time
	ch     chan time.Time
	active bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := t.active
	t.active = false
	return wasActive
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	ch     chan time.Time
	active bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.active = false
}
