package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrHTTPMethod   = "http.method"
	AttrHTTPPath     = "http.path"
	AttrHTTPStatus   = "http.status_code"
	AttrClientID     = "client.id"
	AttrStreamEvent  = "stream.event"
	AttrStreamSessID = "stream.session_id"
	AttrCommand      = "command.name"
	AttrErrorMessage = "error.message"
)

// Span name prefixes.
const (
	SpanPrefixAPI      = "api."
	SpanPrefixSnapshot = "snapshot."
	SpanPrefixCommand  = "command."
)

// Event names recorded on spans.
const (
	EventStreamConnected = "stream.connected"
	EventEventDropped    = "stream.event_dropped"
)

// Start begins a span on tracer, falling back to a no-op tracer when nil.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err (if any) as the span outcome and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
