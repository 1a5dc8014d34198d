package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/testutil"
)

func newClient(t *testing.T, svc *testutil.Service) *Client {
	t.Helper()
	c, err := New(svc.URL(), WithClientID("test-client"))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.ErrorContains(t, err, "scheme must be http or https")

	_, err = New("://nope")
	require.Error(t, err)
}

func TestClient_URL(t *testing.T) {
	c, err := New("http://localhost:8000/api/")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000/api/leads?limit=5", c.URL("/leads", map[string][]string{"limit": {"5"}}))
	require.Equal(t, "http://localhost:8000/api", c.BaseURL())
	require.NotEmpty(t, c.ClientID())
}

func TestClient_Status(t *testing.T) {
	svc := testutil.NewService(t,
		testutil.WithState(testutil.RunningEnrich()),
		testutil.WithMetrics(testutil.Metrics(0, pipeline.LeadNew, 10, pipeline.LeadEnriched, 40)),
	)
	c := newClient(t, svc)

	st, m, err := c.Status(context.Background())

	require.NoError(t, err)
	require.Equal(t, testutil.RunningEnrich(), st)
	require.Equal(t, 50, m.Total)
	require.Equal(t, 40, m.Count(pipeline.LeadEnriched))
}

func TestClient_LeadsDedupedAndLimited(t *testing.T) {
	leads := testutil.StandardLeads(3)
	svc := testutil.NewService(t, testutil.WithLeads(append(leads, leads[0])...))
	c := newClient(t, svc)

	got, err := c.Leads(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, leads, got)

	got, err = c.Leads(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestClient_LogsEmptyIsNonNil(t *testing.T) {
	c := newClient(t, testutil.NewService(t))

	logs, err := c.Logs(context.Background(), 100)

	require.NoError(t, err)
	require.NotNil(t, logs)
	require.Empty(t, logs)
}

func TestClient_LeadMessages(t *testing.T) {
	msg := pipeline.LeadMessage{EmailA: "Hi A", EmailB: "Hi B", DMA: "dm a", DMB: "dm b", CTA: "Book a call"}
	svc := testutil.NewService(t, testutil.WithMessages(7, msg))
	c := newClient(t, svc)

	got, err := c.LeadMessages(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []pipeline.LeadMessage{msg}, got)

	_, err = c.LeadMessages(context.Background(), 8)
	require.EqualError(t, err, "Lead not found")
	require.True(t, IsServiceError(err))
}

func TestClient_StartSendsBody(t *testing.T) {
	svc := testutil.NewService(t)
	c := newClient(t, svc)

	resp, err := c.Start(context.Background(), StartRequest{DryRun: true, Count: 25})

	require.NoError(t, err)
	require.Equal(t, "Pipeline started", resp.Message)
	require.Equal(t, []testutil.StartBody{{DryRun: true, Count: 25}}, svc.Starts())
}

func TestClient_CommandRejectionIsVerbatim(t *testing.T) {
	svc := testutil.NewService(t)
	svc.RejectCommand("/pipeline/start", "Pipeline already running")
	c := newClient(t, svc)

	_, err := c.Start(context.Background(), StartRequest{Count: 10})

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Pipeline already running", err.Error())
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	svc := testutil.NewService(t)
	svc.Fail("/reset", http.StatusInternalServerError)
	c := newClient(t, svc)

	_, err := c.Reset(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.Stop(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	require.False(t, IsServiceError(err))
}

func TestClient_SendsClientIDHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(ClientIDHeader)
		_, _ = io.WriteString(w, `{"total":0,"status_counts":{}}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithClientID("abc"))
	require.NoError(t, err)
	_, err = c.Metrics(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", got)
}

func TestClient_MalformedMetricsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total":1,"status_counts":{"SENT":5}}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.Metrics(context.Background())
	require.ErrorContains(t, err, "exceeds total")
}

func TestClient_OpenEvents(t *testing.T) {
	svc := testutil.NewService(t)
	c := newClient(t, svc)

	body, err := c.OpenEvents(context.Background())
	require.NoError(t, err)
	svc.WaitForStreams(1)

	buf := make([]byte, 256)
	n, err := body.Read(buf)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(buf[:n]), ": connected"))
	require.NoError(t, body.Close())
}

func TestClient_OpenEventsRefused(t *testing.T) {
	svc := testutil.NewService(t)
	svc.RefuseStreams(http.StatusServiceUnavailable)
	c := newClient(t, svc)

	body, err := c.OpenEvents(context.Background())

	require.Nil(t, body)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestClient_CommandsAcceptEmptyBody(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNoContent} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			t.Cleanup(srv.Close)

			c, err := New(srv.URL)
			require.NoError(t, err)

			resp, err := c.Start(context.Background(), StartRequest{Count: 10})
			require.NoError(t, err)
			require.Equal(t, CommandResponse{}, resp)

			_, err = c.Stop(context.Background())
			require.NoError(t, err)

			_, err = c.Reset(context.Background())
			require.NoError(t, err)
		})
	}
}

func TestClient_EmptyReadBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Metrics(context.Background())
	require.ErrorContains(t, err, "decode /metrics response")
}
