// Package stream keeps the push connection to the pipeline service alive.
// It decodes the event stream, hands typed events to a sink, and reconnects
// on a fixed delay after any failure until closed.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/pipewatch/internal/clock"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/sse"
)

// DefaultReconnectDelay is the fixed wait between a failure and the next attempt.
const DefaultReconnectDelay = 3 * time.Second

// Opener opens the raw event stream. It must return an error for any
// response that is not an accepted stream.
type Opener interface {
	OpenEvents(ctx context.Context) (io.ReadCloser, error)
}

// Sink receives everything the manager observes.
type Sink interface {
	Dispatch(ev pipeline.Event) error
	SetConnected(connected bool) error
	CountDropped() error
}

// Stats are counters for diagnostics and tests.
type Stats struct {
	Attempts   int64
	Sessions   int64
	Dropped    int64
	Dispatched int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithClock injects the clock used for reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithBeforeReconnect registers a hook run after the reconnect delay and
// before the next open attempt. It runs on the manager goroutine.
func WithBeforeReconnect(fn func(ctx context.Context)) Option {
	return func(m *Manager) { m.beforeReconnect = fn }
}

// Manager owns one supervised connection goroutine.
type Manager struct {
	opener          Opener
	sink            Sink
	delay           time.Duration
	clock           clock.Clock
	beforeReconnect func(ctx context.Context)

	connected atomic.Bool
	attempts  atomic.Int64
	sessions  atomic.Int64
	dropped   atomic.Int64
	dispatch  atomic.Int64

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager returns an idle manager. Call Open to start it.
func NewManager(opener Opener, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		opener: opener,
		sink:   sink,
		delay:  DefaultReconnectDelay,
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts the connection loop. It returns immediately; calling it again
// or after Close does nothing.
func (m *Manager) Open(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	log.SafeGo("stream.manager", func() {
		defer close(done)
		m.run(ctx)
	})
}

// Connected reports whether a stream is currently open.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Stats returns a copy of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Attempts:   m.attempts.Load(),
		Sessions:   m.sessions.Load(),
		Dropped:    m.dropped.Load(),
		Dispatched: m.dispatch.Load(),
	}
}

// Close stops the loop, closes any open stream, and cancels a pending
// reconnect. It waits for the goroutine to exit. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.done == nil {
			// Never opened: make a later Open a no-op.
			m.done = make(chan struct{})
			close(m.done)
		}
		cancel, done := m.cancel, m.done
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		<-done
	})
}

func (m *Manager) run(ctx context.Context) {
	for {
		m.session(ctx)
		m.setConnected(false)

		if ctx.Err() != nil {
			return
		}
		log.Debug(log.CatStream, "reconnect scheduled", "delay", m.delay)
		if !m.sleep(ctx, m.delay) {
			return
		}
		if m.beforeReconnect != nil {
			m.beforeReconnect(ctx)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// sleep waits d on the manager's clock. Returns false if ctx ended first.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := m.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return ctx.Err() == nil
	}
}

// session opens one stream and consumes it until it fails.
func (m *Manager) session(ctx context.Context) {
	m.attempts.Add(1)
	id := uuid.NewString()

	body, err := m.opener.OpenEvents(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn(log.CatStream, "open failed", "session", id, "error", err)
		}
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer func() {
		stop()
		_ = body.Close()
	}()

	m.sessions.Add(1)
	m.setConnected(true)
	log.Info(log.CatStream, "connected", "session", id)

	dec := sse.NewDecoder(body)
	for {
		msg, err := dec.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF):
				log.Warn(log.CatStream, "stream closed by server", "session", id)
			default:
				log.Warn(log.CatStream, "stream failed", "session", id, "error", err)
			}
			return
		}
		m.handle(id, msg)
	}
}

func (m *Manager) handle(session string, msg sse.Message) {
	ev, err := pipeline.DecodeEvent(msg.Event, []byte(msg.Data))
	if err != nil {
		m.dropped.Add(1)
		log.Warn(log.CatStream, "dropping malformed event", "session", session, "event", msg.Event, "error", err)
		_ = m.sink.CountDropped()
		return
	}
	if u, ok := ev.(pipeline.Unknown); ok {
		log.Debug(log.CatStream, "ignoring event", "session", session, "event", u.EventName)
		return
	}
	m.dispatch.Add(1)
	if err := m.sink.Dispatch(ev); err != nil {
		log.Debug(log.CatStream, "event discarded", "event", ev.Name(), "error", err)
	}
}

func (m *Manager) setConnected(v bool) {
	if m.connected.Swap(v) == v {
		return
	}
	_ = m.sink.SetConnected(v)
}
