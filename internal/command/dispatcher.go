// Package command issues start, stop, and reset to the pipeline service and
// seeds or clears local state to match.
package command

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/pipewatch/internal/api"
	"github.com/zjrosen/pipewatch/internal/flags"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/tracing"
)

// Lead count bounds for a run.
const (
	MinCount     = 1
	MaxCount     = 500
	DefaultCount = 10
)

// ResetPrompt is the question put to the Confirmer before a reset.
const ResetPrompt = "Reset clears every lead, message, and log on the server. Continue?"

// ErrNotConfirmed is returned by Reset when the user declined.
var ErrNotConfirmed = errors.New("reset not confirmed")

// Service is the command side of the pipeline service.
type Service interface {
	Start(ctx context.Context, req api.StartRequest) (api.CommandResponse, error)
	Stop(ctx context.Context) (api.CommandResponse, error)
	Reset(ctx context.Context) (api.CommandResponse, error)
}

// State is the local state the dispatcher seeds and clears.
type State interface {
	BeginRun() error
	MarkStopped(notice *pipeline.Notice) error
	Clear() error
	Notify(n pipeline.Notice) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt. Used by the reset command's --yes flag.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Flusher drops cached per-lead data after a reset.
type Flusher interface {
	Flush(ctx context.Context) error
}

// StartOptions are the user's choices for a run.
type StartOptions struct {
	DryRun bool
	AIMode bool
	Count  int
}

// ClampCount bounds n to [MinCount, MaxCount]. Non-positive input is treated
// as missing and becomes DefaultCount.
func ClampCount(n int) int {
	switch {
	case n <= 0:
		return DefaultCount
	case n > MaxCount:
		return MaxCount
	default:
		return n
	}
}

// ParseCount reads a user-typed count. Anything unparsable becomes DefaultCount.
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultCount
	}
	return ClampCount(n)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFlags supplies the feature flag registry.
func WithFlags(r *flags.Registry) Option {
	return func(d *Dispatcher) { d.flags = r }
}

// WithCache registers a cache flushed on reset.
func WithCache(f Flusher) Option {
	return func(d *Dispatcher) { d.cache = f }
}

// WithTracer sets the tracer for command spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithStartHook registers fn to run after the service accepted a start.
func WithStartHook(fn func(StartOptions)) Option {
	return func(d *Dispatcher) { d.onStarted = fn }
}

// Dispatcher runs user commands.
type Dispatcher struct {
	svc       Service
	state     State
	flags     *flags.Registry
	cache     Flusher
	tracer    trace.Tracer
	onStarted func(StartOptions)
}

// New returns a Dispatcher.
func New(svc Service, state State, opts ...Option) *Dispatcher {
	d := &Dispatcher{svc: svc, state: state}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start seeds a fresh running state, then asks the service to start. On any
// failure the running flag is rolled back and the failure text is published
// verbatim. The returned error carries the same text.
func (d *Dispatcher) Start(ctx context.Context, opts StartOptions) (err error) {
	opts.Count = ClampCount(opts.Count)
	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanPrefixCommand+"start",
		attribute.String(tracing.AttrCommand, "start"),
		attribute.Int("start.count", opts.Count),
		attribute.Bool("start.dry_run", opts.DryRun),
		attribute.Bool("start.ai_mode", opts.AIMode),
	)
	defer func() { tracing.End(span, err) }()

	if err := d.state.BeginRun(); err != nil {
		return err
	}

	resp, err := d.svc.Start(ctx, api.StartRequest{DryRun: opts.DryRun, AIMode: opts.AIMode, Count: opts.Count})
	if err != nil {
		log.ErrorErr(log.CatCommand, "start failed", err, "count", opts.Count)
		n := pipeline.ErrorNotice(err.Error())
		_ = d.state.MarkStopped(&n)
		return err
	}

	log.Info(log.CatCommand, "pipeline started", "count", opts.Count, "dry_run", opts.DryRun, "ai_mode", opts.AIMode)
	if resp.Message != "" {
		_ = d.state.Notify(pipeline.InfoNotice(resp.Message))
	}
	if d.onStarted != nil {
		d.onStarted(opts)
	}
	return nil
}

// Stop asks the service to stop and marks the run stopped locally whatever
// the outcome. A request failure is logged and returned but does not undo
// the local stop.
func (d *Dispatcher) Stop(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanPrefixCommand+"stop",
		attribute.String(tracing.AttrCommand, "stop"))
	defer func() { tracing.End(span, err) }()

	_, err = d.svc.Stop(ctx)
	if err != nil {
		log.Warn(log.CatCommand, "stop request failed", "error", err)
	}
	if markErr := d.state.MarkStopped(nil); markErr != nil {
		return errors.Join(err, markErr)
	}
	return err
}

// Reset asks c for confirmation, requests a server reset, and clears local
// state. Local clearing happens regardless of the request outcome unless the
// reset-requires-ack flag is enabled, in which case a failed request leaves
// local state alone.
func (d *Dispatcher) Reset(ctx context.Context, c Confirmer) (err error) {
	if c == nil {
		return ErrNotConfirmed
	}
	ok, err := c.Confirm(ctx, ResetPrompt)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug(log.CatCommand, "reset declined")
		return ErrNotConfirmed
	}

	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanPrefixCommand+"reset",
		attribute.String(tracing.AttrCommand, "reset"))
	defer func() { tracing.End(span, err) }()

	_, err = d.svc.Reset(ctx)
	if err != nil {
		log.ErrorErr(log.CatCommand, "reset failed", err)
		_ = d.state.Notify(pipeline.ErrorNotice(err.Error()))
		if d.flags.Enabled(flags.FlagResetRequiresAck) {
			return err
		}
	}

	if clearErr := d.state.Clear(); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	if d.cache != nil {
		if flushErr := d.cache.Flush(ctx); flushErr != nil {
			log.Warn(log.CatCache, "flush after reset failed", "error", flushErr)
		}
	}
	if err == nil {
		_ = d.state.Notify(pipeline.InfoNotice("Reset complete"))
	}
	return err
}
