// Package clock abstracts time so the reconnect and polling loops can be driven
// deterministically in tests.
package clock

import "time"

// Clock provides the current time and timer construction. Use Real for
// production and Fake for tests.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is the subset of *time.Timer the loops use.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker is the subset of *time.Ticker the loops use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is backed by the time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// NewTimer wraps time.NewTimer.
func (Real) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
