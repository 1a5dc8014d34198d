// Package store owns the client's single source of truth. Every mutation runs
// on one actor goroutine in submission order; readers get deep copies and
// subscribers get change notifications through pubsub brokers.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/pubsub"
)

// ErrClosed is returned by every mutation submitted after Close.
var ErrClosed = errors.New("store closed")

const defaultQueueSize = 256

// Snapshot is an immutable copy of everything the store holds.
type Snapshot struct {
	Pipeline      pipeline.State
	Metrics       pipeline.Metrics
	Leads         []pipeline.Lead
	Logs          []pipeline.LogEntry
	Connected     bool
	DroppedEvents int
	// Seq increments on every applied change.
	Seq uint64
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Pipeline = s.Pipeline.Clone()
	out.Metrics = s.Metrics.Clone()
	out.Leads = slices.Clone(s.Leads)
	out.Logs = slices.Clone(s.Logs)
	return out
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Pipeline: pipeline.InitialState(),
		Metrics:  pipeline.Metrics{StatusCounts: map[pipeline.LeadStatus]int{}},
		Leads:    []pipeline.Lead{},
		Logs:     []pipeline.LogEntry{},
	}
}

// result is what one mutation produced.
type result struct {
	changed   bool
	connEvent bool
	notices   []pipeline.Notice
	refresh   bool
}

type op struct {
	name  string
	apply func(cur *Snapshot) result
	reply chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithRefreshHook registers fn to be called when an applied event asks for a
// leads/logs/metrics re-read. fn runs on the actor goroutine and must not block.
func WithRefreshHook(fn func()) Option {
	return func(s *Store) { s.onRefresh = fn }
}

// WithQueueSize sets the mutation queue length.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// Store is the single-owner state container.
type Store struct {
	queueSize int
	ops       chan op
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.RWMutex
	cur Snapshot

	states    *pubsub.Broker[Snapshot]
	notices   *pubsub.Broker[pipeline.Notice]
	onRefresh func()
}

// New starts a store holding the initial pending state.
func New(opts ...Option) *Store {
	s := &Store{
		queueSize: defaultQueueSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		cur:       emptySnapshot(),
		states:    pubsub.NewBroker[Snapshot](),
		notices:   pubsub.NewBroker[pipeline.Notice](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ops = make(chan op, s.queueSize)
	log.SafeGo("store.actor", s.run)
	return s
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case o := <-s.ops:
			s.process(o)
		}
	}
}

func (s *Store) process(o op) {
	defer close(o.reply)

	s.mu.Lock()
	next := s.cur.clone()
	res := o.apply(&next)
	if res.changed {
		next.Seq = s.cur.Seq + 1
		s.cur = next
	}
	published := s.cur.clone()
	s.mu.Unlock()

	if res.changed {
		evType := pubsub.StateEvent
		if res.connEvent {
			evType = pubsub.ConnectionEvent
		}
		s.states.Publish(evType, published)
		log.Debug(log.CatStore, "applied", "op", o.name, "seq", published.Seq,
			"running", published.Pipeline.Running, "stage", published.Pipeline.CurrentStage)
	}
	for _, n := range res.notices {
		s.notices.Publish(pubsub.NoticeEvent, n)
		log.Info(log.CatStore, "notice", "kind", n.Kind.String(), "text", n.Text)
	}
	if res.refresh && s.onRefresh != nil {
		s.onRefresh()
	}
}

// submit queues fn and waits until it has been applied. It never blocks on
// I/O: the op is pure state manipulation.
func (s *Store) submit(name string, fn func(cur *Snapshot) result) error {
	o := op{name: name, apply: fn, reply: make(chan struct{})}
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}
	select {
	case s.ops <- o:
	case <-s.quit:
		return ErrClosed
	}
	select {
	case <-o.reply:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Subscribe streams every applied change. The channel closes when ctx ends or
// the store closes.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return s.states.Subscribe(ctx)
}

// Notices streams user-facing messages.
func (s *Store) Notices(ctx context.Context) <-chan pubsub.Event[pipeline.Notice] {
	return s.notices.Subscribe(ctx)
}

// StateBroker exposes the change broker for Bubble Tea listeners.
func (s *Store) StateBroker() pubsub.Subscriber[Snapshot] {
	return s.states
}

// NoticeBroker exposes the notice broker for Bubble Tea listeners.
func (s *Store) NoticeBroker() pubsub.Subscriber[pipeline.Notice] {
	return s.notices
}

// Close stops the actor. Later mutations return ErrClosed and are discarded.
// Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		s.states.Close()
		s.notices.Close()
	})
}
