// Package snapshot reads whole-value snapshots from the pipeline service and
// writes them into the store, and runs the polling fallback used while the
// event stream is down.
package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/tracing"
)

// Default page sizes for leads and logs.
const (
	DefaultLeadsLimit = 50
	DefaultLogsLimit  = 100
)

// Source is the read side of the service.
type Source interface {
	Status(ctx context.Context) (pipeline.State, pipeline.Metrics, error)
	Metrics(ctx context.Context) (pipeline.Metrics, error)
	Leads(ctx context.Context, limit int) ([]pipeline.Lead, error)
	Logs(ctx context.Context, limit int) ([]pipeline.LogEntry, error)
}

// Target receives complete snapshots.
type Target interface {
	ApplyBootstrap(st pipeline.State, m pipeline.Metrics, leads []pipeline.Lead, logs []pipeline.LogEntry) error
	ApplyRefresh(m pipeline.Metrics, leads []pipeline.Lead, logs []pipeline.LogEntry) error
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLimits sets the leads and logs page sizes.
func WithLimits(leads, logs int) FetcherOption {
	return func(f *Fetcher) { f.SetLimits(leads, logs) }
}

// WithTracer sets the tracer for bootstrap and refresh spans.
func WithTracer(t trace.Tracer) FetcherOption {
	return func(f *Fetcher) { f.tracer = t }
}

// Fetcher performs bootstrap and refresh reads. Each read issues its requests
// concurrently and writes nothing unless every request succeeded.
type Fetcher struct {
	src    Source
	dst    Target
	tracer trace.Tracer

	leadsLimit atomic.Int64
	logsLimit  atomic.Int64
}

// NewFetcher returns a Fetcher reading from src and writing to dst.
func NewFetcher(src Source, dst Target, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{src: src, dst: dst}
	f.leadsLimit.Store(DefaultLeadsLimit)
	f.logsLimit.Store(DefaultLogsLimit)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetLimits changes the page sizes used by later reads. Non-positive values are ignored.
func (f *Fetcher) SetLimits(leads, logs int) {
	if leads > 0 {
		f.leadsLimit.Store(int64(leads))
	}
	if logs > 0 {
		f.logsLimit.Store(int64(logs))
	}
}

// Limits returns the current page sizes.
func (f *Fetcher) Limits() (leads, logs int) {
	return int(f.leadsLimit.Load()), int(f.logsLimit.Load())
}

// Bootstrap reads status, leads, and logs and replaces everything in the
// target, including stage progress.
func (f *Fetcher) Bootstrap(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, f.tracer, tracing.SpanPrefixSnapshot+"bootstrap")
	defer func() { tracing.End(span, err) }()

	var (
		state   pipeline.State
		metrics pipeline.Metrics
		leads   []pipeline.Lead
		logs    []pipeline.LogEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		state, metrics, err = f.src.Status(gctx)
		return err
	})
	f.readLists(gctx, g, &leads, &logs)
	if err := g.Wait(); err != nil {
		log.Warn(log.CatPoll, "bootstrap failed", "error", err)
		return fmt.Errorf("bootstrap: %w", err)
	}
	return f.dst.ApplyBootstrap(state, metrics, leads, logs)
}

// Refresh reads metrics, leads, and logs and replaces them in the target.
// Stage progress is never touched.
func (f *Fetcher) Refresh(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, f.tracer, tracing.SpanPrefixSnapshot+"refresh")
	defer func() { tracing.End(span, err) }()

	var (
		metrics pipeline.Metrics
		leads   []pipeline.Lead
		logs    []pipeline.LogEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		metrics, err = f.src.Metrics(gctx)
		return err
	})
	f.readLists(gctx, g, &leads, &logs)
	if err := g.Wait(); err != nil {
		log.Warn(log.CatPoll, "refresh failed", "error", err)
		return fmt.Errorf("refresh: %w", err)
	}
	return f.dst.ApplyRefresh(metrics, leads, logs)
}

func (f *Fetcher) readLists(ctx context.Context, g *errgroup.Group, leads *[]pipeline.Lead, logs *[]pipeline.LogEntry) {
	leadsLimit, logsLimit := f.Limits()
	g.Go(func() (err error) {
		*leads, err = f.src.Leads(ctx, leadsLimit)
		return err
	})
	g.Go(func() (err error) {
		*logs, err = f.src.Logs(ctx, logsLimit)
		return err
	})
}
