// Package api is the HTTP client for the outreach pipeline service: snapshot
// reads, commands, and the raw event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/tracing"
)

// ClientIDHeader identifies this client instance to the service.
const ClientIDHeader = "X-Client-ID"

const defaultTimeout = 10 * time.Second

// Client talks to one pipeline service.
type Client struct {
	base     *url.URL
	http     *http.Client
	stream   *http.Client
	clientID string
	tracer   trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for snapshot reads and commands.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStreamClient replaces the client used for the event stream. It must not
// set an overall timeout.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.stream = hc }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithClientID overrides the generated client id.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: defaultTimeout},
		stream:   &http.Client{},
		clientID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ClientID returns the id sent in ClientIDHeader.
func (c *Client) ClientID() string {
	return c.clientID
}

// URL resolves path against the service root.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Status reads GET /pipeline/status and decodes it.
func (c *Client) Status(ctx context.Context) (pipeline.State, pipeline.Metrics, error) {
	var resp StatusResponse
	if err := c.getJSON(ctx, "status", "/pipeline/status", nil, &resp); err != nil {
		return pipeline.State{}, pipeline.Metrics{}, err
	}
	state, err := resp.PipelineState.ToState()
	if err != nil {
		return pipeline.State{}, pipeline.Metrics{}, fmt.Errorf("decode pipeline_state: %w", err)
	}
	metrics, err := resp.Metrics.ToMetrics()
	if err != nil {
		return pipeline.State{}, pipeline.Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return state, metrics, nil
}

// Metrics reads GET /metrics.
func (c *Client) Metrics(ctx context.Context) (pipeline.Metrics, error) {
	var w pipeline.WireMetrics
	if err := c.getJSON(ctx, "metrics", "/metrics", nil, &w); err != nil {
		return pipeline.Metrics{}, err
	}
	m, err := w.ToMetrics()
	if err != nil {
		return pipeline.Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}

// Leads reads the most recent leads.
func (c *Client) Leads(ctx context.Context, limit int) ([]pipeline.Lead, error) {
	var resp leadsResponse
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "leads", "/leads", q, &resp); err != nil {
		return nil, err
	}
	return pipeline.DedupeLeads(resp.Items), nil
}

// Logs reads the most recent activity log lines, newest first.
func (c *Client) Logs(ctx context.Context, limit int) ([]pipeline.LogEntry, error) {
	var resp logsResponse
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "logs", "/logs", q, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []pipeline.LogEntry{}, nil
	}
	return resp.Items, nil
}

// LeadMessages reads the generated messages for one lead.
func (c *Client) LeadMessages(ctx context.Context, leadID int) ([]pipeline.LeadMessage, error) {
	var resp messagesResponse
	path := "/leads/" + strconv.Itoa(leadID) + "/messages"
	if err := c.getJSON(ctx, "lead_messages", path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &Error{Endpoint: path, StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.Messages, nil
}

// Start requests a new run.
func (c *Client) Start(ctx context.Context, req StartRequest) (CommandResponse, error) {
	return c.command(ctx, "start", "/pipeline/start", req)
}

// Stop requests that the current run stop.
func (c *Client) Stop(ctx context.Context) (CommandResponse, error) {
	return c.command(ctx, "stop", "/pipeline/stop", nil)
}

// Reset asks the service to clear all pipeline data.
func (c *Client) Reset(ctx context.Context) (CommandResponse, error) {
	return c.command(ctx, "reset", "/reset", nil)
}

func (c *Client) command(ctx context.Context, name, path string, body any) (CommandResponse, error) {
	var resp CommandResponse
	if err := c.postJSON(ctx, name, path, body, &resp); err != nil {
		return CommandResponse{}, err
	}
	if resp.Status == "error" {
		msg := resp.Message
		if msg == "" {
			msg = name + " failed"
		}
		return resp, &Error{Endpoint: path, StatusCode: http.StatusOK, Message: msg}
	}
	return resp, nil
}

// OpenEvents opens GET /events. The caller owns the returned body. Any
// response other than 200 is an error and its body is closed here.
func (c *Client) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/events", nil), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(ClientIDHeader, c.clientID)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("/events", resp.StatusCode, body)
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, name, path string, query url.Values, out any) error {
	return c.do(ctx, name, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, name, path string, body, out any) error {
	return c.do(ctx, name, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, name, method, path string, query url.Values, body, out any) (err error) {
	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanPrefixAPI+name,
		attribute.String(tracing.AttrHTTPMethod, method),
		attribute.String(tracing.AttrHTTPPath, path),
		attribute.String(tracing.AttrClientID, c.clientID),
	)
	defer func() { tracing.End(span, err) }()

	var reader io.Reader
	if body != nil {
		raw, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("encode %s request: %w", name, mErr)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientIDHeader, c.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug(log.CatAPI, "request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatus, resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrTransport, path, err)
	}
	log.Debug(log.CatAPI, "request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	// Commands may succeed without a body.
	if method == http.MethodPost && len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
