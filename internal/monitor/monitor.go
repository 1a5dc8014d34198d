// Package monitor wires the store, snapshot fetcher, event stream, polling
// fallback, and command dispatcher into one running client.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/pipewatch/internal/cachemanager"
	"github.com/zjrosen/pipewatch/internal/clock"
	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/flags"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/snapshot"
	"github.com/zjrosen/pipewatch/internal/store"
	"github.com/zjrosen/pipewatch/internal/stream"
)

// Service is everything the monitor needs from the pipeline service.
// *api.Client satisfies it.
type Service interface {
	snapshot.Source
	stream.Opener
	command.Service
	LeadMessages(ctx context.Context, leadID int) ([]pipeline.LeadMessage, error)
}

// Settings are the tunables read from config. Zero values fall back to the
// package defaults of the component they configure.
type Settings struct {
	ReconnectDelay time.Duration
	PollInterval   time.Duration
	LeadsLimit     int
	LogsLimit      int
	MessageTTL     time.Duration
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSettings applies config values.
func WithSettings(s Settings) Option {
	return func(m *Monitor) { m.settings = s }
}

// WithClock drives reconnect and poll timers from c.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithTracer sets the tracer for snapshot and command spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Monitor) { m.tracer = t }
}

// WithFlags supplies the feature flag registry.
func WithFlags(r *flags.Registry) Option {
	return func(m *Monitor) { m.flags = r }
}

// WithStartHook runs fn after the service accepted a start.
func WithStartHook(fn func(command.StartOptions)) Option {
	return func(m *Monitor) { m.onStarted = fn }
}

// Monitor is a running client session.
type Monitor struct {
	svc       Service
	settings  Settings
	clock     clock.Clock
	tracer    trace.Tracer
	flags     *flags.Registry
	onStarted func(command.StartOptions)

	store    *store.Store
	fetcher  *snapshot.Fetcher
	stream   *stream.Manager
	poller   *snapshot.Poller
	commands *command.Dispatcher
	messages *cachemanager.ReadThrough[int, []pipeline.LeadMessage]

	refresh chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	started   bool
	closeOnce sync.Once
}

// New builds an idle monitor. Call Start to bootstrap and connect.
func New(svc Service, opts ...Option) *Monitor {
	m := &Monitor{
		svc:     svc,
		clock:   clock.Real{},
		refresh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.flags == nil {
		m.flags = flags.New(nil)
	}

	m.store = store.New(store.WithRefreshHook(m.requestRefresh))
	m.fetcher = snapshot.NewFetcher(svc, m.store,
		snapshot.WithLimits(m.settings.LeadsLimit, m.settings.LogsLimit),
		snapshot.WithTracer(m.tracer),
	)
	m.stream = stream.NewManager(svc, m.store,
		stream.WithReconnectDelay(m.settings.ReconnectDelay),
		stream.WithClock(m.clock),
		stream.WithBeforeReconnect(m.bootstrap),
	)
	m.poller = snapshot.NewPoller(m.fetcher, m.stream.Connected,
		snapshot.WithInterval(m.settings.PollInterval),
		snapshot.WithPollClock(m.clock),
	)

	cache := cachemanager.NewMemory[int, []pipeline.LeadMessage]("lead-messages", m.settings.MessageTTL, 0)
	m.messages = cachemanager.NewReadThrough(cache, svc.LeadMessages, m.settings.MessageTTL,
		cachemanager.WithBypass[int, []pipeline.LeadMessage](func() bool {
			return !m.flags.Enabled(flags.FlagMessageCache)
		}),
		cachemanager.WithStoreIf[int](func(msgs []pipeline.LeadMessage) bool { return len(msgs) > 0 }),
	)

	m.commands = command.New(svc, m.store,
		command.WithFlags(m.flags),
		command.WithCache(m.messages),
		command.WithTracer(m.tracer),
		command.WithStartHook(m.onStarted),
	)
	return m
}

// Start performs the synchronous bootstrap read, then opens the stream and
// starts the poller. A failed bootstrap is logged; the stream and poller
// recover from it. Calling Start twice, or after Close, does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.workers.Add(1)
	m.mu.Unlock()

	log.SafeGo("monitor.refresh", func() {
		defer m.workers.Done()
		m.refreshLoop(ctx)
	})

	m.bootstrap(ctx)
	m.stream.Open(ctx)
	m.poller.Start(ctx)
	log.Info(log.CatStore, "monitor started")
}

// Close stops the stream, the poller, and the refresh worker, then closes the
// store. Safe to call more than once.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		cancel := m.cancel
		m.mu.Unlock()

		m.stream.Close()
		m.poller.Stop()
		if cancel != nil {
			cancel()
		}
		m.workers.Wait()
		m.store.Close()
		log.Info(log.CatStore, "monitor closed")
	})
}

// Store exposes the state container for rendering and subscriptions.
func (m *Monitor) Store() *store.Store { return m.store }

// Commands exposes start, stop, and reset.
func (m *Monitor) Commands() *command.Dispatcher { return m.commands }

// Fetcher exposes snapshot reads, for page-size changes and one-shot reads.
func (m *Monitor) Fetcher() *snapshot.Fetcher { return m.fetcher }

// Connected reports whether the event stream is open.
func (m *Monitor) Connected() bool { return m.stream.Connected() }

// StreamStats returns the connection manager's counters.
func (m *Monitor) StreamStats() stream.Stats { return m.stream.Stats() }

// PollStats returns the polling fallback's counters.
func (m *Monitor) PollStats() snapshot.PollStats { return m.poller.Stats() }

// LeadMessages returns the generated messages for a lead, served from cache
// when the message-cache flag is on.
func (m *Monitor) LeadMessages(ctx context.Context, leadID int) ([]pipeline.LeadMessage, error) {
	return m.messages.Get(ctx, leadID)
}

func (m *Monitor) bootstrap(ctx context.Context) {
	if err := m.fetcher.Bootstrap(ctx); err != nil && ctx.Err() == nil {
		log.Warn(log.CatPoll, "bootstrap read failed", "error", err)
	}
}

// requestRefresh runs on the store goroutine. Requests coalesce while a
// refresh is pending.
func (m *Monitor) requestRefresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

func (m *Monitor) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.refresh:
			if err := m.fetcher.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn(log.CatPoll, "event-triggered refresh failed", "error", err)
			}
		}
	}
}
