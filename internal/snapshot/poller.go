package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/pipewatch/internal/clock"
	"github.com/zjrosen/pipewatch/internal/log"
)

// DefaultPollInterval is how often the poller ticks.
const DefaultPollInterval = 2 * time.Second

// Refresher is the fetch the poller runs on each tick while disconnected.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PollStats counts what the poller did.
type PollStats struct {
	Ticks    int64
	Fetches  int64
	Skipped  int64
	Failures int64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollClock injects the clock driving the ticker.
func WithPollClock(c clock.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// Poller is the polling fallback: a fixed-interval ticker that refreshes only
// while the stream reports disconnected. Ticks while connected are no-ops.
type Poller struct {
	refresher Refresher
	connected func() bool
	interval  time.Duration
	clock     clock.Clock

	ticks    atomic.Int64
	fetches  atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller returns an idle poller. connected is consulted on every tick.
func NewPoller(r Refresher, connected func() bool, opts ...PollerOption) *Poller {
	p := &Poller{
		refresher: r,
		connected: connected,
		interval:  DefaultPollInterval,
		clock:     clock.Real{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins ticking. A second Start while running does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	ticker := p.clock.NewTicker(p.interval)
	log.SafeGo("snapshot.poller", func() {
		defer close(done)
		defer ticker.Stop()
		p.loop(ctx, ticker)
	})
}

// Stop halts the ticker and waits for an in-flight fetch to return. Results
// of that fetch are discarded by the closed store.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Stats returns a copy of the counters.
func (p *Poller) Stats() PollStats {
	return PollStats{
		Ticks:    p.ticks.Load(),
		Fetches:  p.fetches.Load(),
		Skipped:  p.skipped.Load(),
		Failures: p.failures.Load(),
	}
}

func (p *Poller) loop(ctx context.Context, ticker clock.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.ticks.Add(1)
	if p.connected() {
		p.skipped.Add(1)
		return
	}
	p.fetches.Add(1)
	if err := p.refresher.Refresh(ctx); err != nil {
		p.failures.Add(1)
		if ctx.Err() == nil {
			log.Warn(log.CatPoll, "poll refresh failed", "error", err)
		}
	}
}
