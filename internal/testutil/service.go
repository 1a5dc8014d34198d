// Package testutil provides an in-process fake of the outreach pipeline
// service for tests: snapshot endpoints, commands, and a controllable event
// stream.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/pipewatch/internal/pipeline"
)

// StartBody is the decoded body of a start request received by the fake.
type StartBody struct {
	DryRun bool `json:"dry_run"`
	AIMode bool `json:"ai_mode"`
	Count  int  `json:"count"`
}

type streamConn struct {
	frames chan string
	done   chan struct{}
	once   sync.Once
}

func (c *streamConn) close() {
	c.once.Do(func() { close(c.done) })
}

// Service is a fake pipeline service backed by httptest.Server.
type Service struct {
	t   testing.TB
	srv *httptest.Server

	mu       sync.Mutex
	state    pipeline.State
	metrics  pipeline.Metrics
	leads    []pipeline.Lead
	logs     []pipeline.LogEntry
	messages map[int][]pipeline.LeadMessage

	failures      map[string]int
	commandErrors map[string]string
	bareCommands  int
	streamCode    int
	calls         map[string]int
	starts        []StartBody
	streams       map[*streamConn]struct{}
	opened        int
	closed        bool
}

// NewService starts a fake service. It is shut down by t.Cleanup.
func NewService(t testing.TB, opts ...ServiceOption) *Service {
	t.Helper()
	s := &Service{
		t:             t,
		state:         pipeline.InitialState(),
		metrics:       pipeline.Metrics{StatusCounts: map[pipeline.LeadStatus]int{}},
		messages:      make(map[int][]pipeline.LeadMessage),
		failures:      make(map[string]int),
		commandErrors: make(map[string]string),
		streamCode:    http.StatusOK,
		calls:         make(map[string]int),
		streams:       make(map[*streamConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pipeline/status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /leads", s.handleLeads)
	mux.HandleFunc("GET /leads/{id}/messages", s.handleMessages)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /pipeline/start", s.handleStart)
	mux.HandleFunc("POST /pipeline/stop", s.handleCommand("Stop signal sent"))
	mux.HandleFunc("POST /reset", s.handleCommand("Database cleared"))

	s.srv = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// URL is the service root.
func (s *Service) URL() string {
	return s.srv.URL
}

// Close drops every stream and shuts the server down.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.DropStreams()
	s.srv.Close()
}

func (s *Service) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		code, failing := s.failures[r.URL.Path]
		s.mu.Unlock()

		if failing {
			http.Error(w, fmt.Sprintf(`{"detail":"%s"}`, http.StatusText(code)), code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetState replaces the pipeline state served by status and init.
func (s *Service) SetState(st pipeline.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clone()
}

// SetMetrics replaces the served metrics.
func (s *Service) SetMetrics(m pipeline.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m.Clone()
}

// SetLeads replaces the served leads.
func (s *Service) SetLeads(leads []pipeline.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append([]pipeline.Lead(nil), leads...)
}

// SetLogs replaces the served log lines.
func (s *Service) SetLogs(logs []pipeline.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append([]pipeline.LogEntry(nil), logs...)
}

// SetMessages sets the generated messages for one lead.
func (s *Service) SetMessages(leadID int, msgs []pipeline.LeadMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[leadID] = append([]pipeline.LeadMessage(nil), msgs...)
}

// Fail makes every request to path answer with code until Recover.
func (s *Service) Fail(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = code
}

// Recover undoes Fail for path.
func (s *Service) Recover(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// RejectCommand makes the command at path answer 200 {"status":"error","message":msg}.
func (s *Service) RejectCommand(path, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandErrors[path] = msg
}

// BareCommands makes every successful command answer code with an empty
// body. Zero restores the JSON reply.
func (s *Service) BareCommands(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bareCommands = code
}

// RefuseStreams makes new /events requests answer code. http.StatusOK accepts again.
func (s *Service) RefuseStreams(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamCode = code
}

// Calls returns how many requests path has received.
func (s *Service) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Starts returns every start body received, oldest first.
func (s *Service) Starts() []StartBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StartBody(nil), s.starts...)
}

// OpenStreams is the number of currently attached stream clients.
func (s *Service) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// StreamsOpened is the number of streams ever accepted.
func (s *Service) StreamsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// WaitForStreams blocks until at least n streams are attached.
func (s *Service) WaitForStreams(n int) {
	s.t.Helper()
	require.Eventually(s.t, func() bool { return s.OpenStreams() >= n }, 2*time.Second, 5*time.Millisecond,
		"expected %d open streams", n)
}

// Emit sends one event to every attached stream. payload is JSON-encoded.
func (s *Service) Emit(name string, payload any) {
	s.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(s.t, err)
	s.EmitRaw(name, string(data))
}

// EmitRaw sends one event with data written verbatim.
func (s *Service) EmitRaw(name, data string) {
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
	s.mu.Lock()
	conns := make([]*streamConn, 0, len(s.streams))
	for c := range s.streams {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		select {
		case c.frames <- frame:
		case <-c.done:
		}
	}
}

// DropStreams ends every attached stream as if the server closed it.
func (s *Service) DropStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.streams {
		c.close()
		delete(s.streams, c)
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) initPayload() map[string]any {
	return map[string]any{
		"pipeline_state": pipeline.FromState(s.state),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	body := map[string]any{
		"pipeline_state": pipeline.FromState(s.state),
		"metrics":        pipeline.FromMetrics(s.metrics),
	}
	s.mu.Unlock()
	s.writeJSON(w, body)
}

func (s *Service) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	body := pipeline.FromMetrics(s.metrics)
	s.mu.Unlock()
	s.writeJSON(w, body)
}

func limitOf(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n >= 0 {
		return n
	}
	return def
}

func (s *Service) handleLeads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := s.leads
	if n := limitOf(r, 50); n < len(items) {
		items = items[:n]
	}
	items = append([]pipeline.Lead{}, items...)
	s.mu.Unlock()
	s.writeJSON(w, map[string]any{"items": items})
}

func (s *Service) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := s.logs
	if n := limitOf(r, 100); n < len(items) {
		items = items[:n]
	}
	items = append([]pipeline.LogEntry{}, items...)
	s.mu.Unlock()
	s.writeJSON(w, map[string]any{"items": items})
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"detail":"invalid lead id"}`, http.StatusUnprocessableEntity)
		return
	}
	s.mu.Lock()
	msgs, ok := s.messages[id]
	s.mu.Unlock()
	if !ok {
		s.writeJSON(w, map[string]any{"error": "Lead not found", "messages": []any{}})
		return
	}
	s.writeJSON(w, map[string]any{"messages": msgs})
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	var body StartBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"detail":"invalid body"}`, http.StatusUnprocessableEntity)
		return
	}
	s.mu.Lock()
	s.starts = append(s.starts, body)
	s.mu.Unlock()
	s.handleCommand("Pipeline started")(w, r)
}

func (s *Service) handleCommand(okMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		msg, rejected := s.commandErrors[r.URL.Path]
		bare := s.bareCommands
		s.mu.Unlock()
		if rejected {
			s.writeJSON(w, map[string]string{"status": "error", "message": msg})
			return
		}
		if bare != 0 {
			w.WriteHeader(bare)
			return
		}
		s.writeJSON(w, map[string]string{"status": "ok", "message": okMsg})
	}
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	conn := &streamConn{frames: make(chan string, 16), done: make(chan struct{})}
	s.mu.Lock()
	code := s.streamCode
	if s.closed {
		code = http.StatusServiceUnavailable
	}
	if code != http.StatusOK {
		s.mu.Unlock()
		http.Error(w, http.StatusText(code), code)
		return
	}
	initData, _ := json.Marshal(s.initPayload())
	s.streams[conn] = struct{}{}
	s.opened++
	s.mu.Unlock()
	defer func() {
		conn.close()
		s.mu.Lock()
		delete(s.streams, conn)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, ": connected\n\nevent: init\ndata: %s\n\n", initData)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.done:
			return
		case frame := <-conn.frames:
			if _, err := w.Write([]byte(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
