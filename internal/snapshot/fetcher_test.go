package snapshot

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/pipewatch/internal/api"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/store"
	"github.com/zjrosen/pipewatch/internal/testutil"
)

func setup(t *testing.T, opts ...testutil.ServiceOption) (*testutil.Service, *store.Store, *Fetcher) {
	t.Helper()
	svc := testutil.NewService(t, opts...)
	client, err := api.New(svc.URL())
	require.NoError(t, err)
	st := store.New()
	t.Cleanup(st.Close)
	return svc, st, NewFetcher(client, st)
}

func TestFetcher_BootstrapReplacesEverything(t *testing.T) {
	leads := testutil.StandardLeads(3)
	_, st, f := setup(t,
		testutil.WithState(testutil.RunningEnrich()),
		testutil.WithMetrics(testutil.Metrics(0, pipeline.LeadNew, 50)),
		testutil.WithLeads(leads...),
		testutil.WithLogs(testutil.StandardLogs()...),
	)

	require.NoError(t, f.Bootstrap(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, testutil.RunningEnrich(), snap.Pipeline)
	require.Equal(t, 50, snap.Metrics.Total)
	require.Equal(t, leads, snap.Leads)
	require.Equal(t, testutil.StandardLogs(), snap.Logs)
}

func TestFetcher_RefreshNeverTouchesProgress(t *testing.T) {
	svc, st, f := setup(t)
	require.NoError(t, st.Dispatch(pipeline.Init{State: testutil.RunningEnrich()}))

	done := testutil.RunningEnrich()
	done.Progress[pipeline.StageEnrich] = pipeline.StageProgress{Status: pipeline.StatusComplete, Count: 50}
	svc.SetState(done)
	svc.SetMetrics(testutil.Metrics(0, pipeline.LeadEnriched, 50))
	svc.SetLeads(testutil.StandardLeads(2))

	require.NoError(t, f.Refresh(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, testutil.RunningEnrich(), snap.Pipeline, "refresh must not write progress")
	require.Equal(t, 50, snap.Metrics.Count(pipeline.LeadEnriched))
	require.Len(t, snap.Leads, 2)
	require.Zero(t, svc.Calls("/pipeline/status"))
}

func TestFetcher_PartialFailureWritesNothing(t *testing.T) {
	for _, path := range []string{"/pipeline/status", "/leads", "/logs"} {
		t.Run(path, func(t *testing.T) {
			svc, st, f := setup(t,
				testutil.WithState(testutil.RunningEnrich()),
				testutil.WithLeads(testutil.StandardLeads(2)...),
			)
			svc.Fail(path, http.StatusInternalServerError)

			err := f.Bootstrap(context.Background())

			require.ErrorContains(t, err, "bootstrap")
			snap := st.Snapshot()
			require.Zero(t, snap.Seq, "store untouched")
			require.Equal(t, pipeline.InitialState(), snap.Pipeline)
			require.Empty(t, snap.Leads)
		})
	}
}

func TestFetcher_RefreshFailureKeepsPreviousValues(t *testing.T) {
	svc, st, f := setup(t, testutil.WithLeads(testutil.StandardLeads(2)...))
	require.NoError(t, f.Refresh(context.Background()))
	before := st.Snapshot()

	svc.SetLeads(testutil.StandardLeads(5))
	svc.Fail("/metrics", http.StatusBadGateway)

	require.Error(t, f.Refresh(context.Background()))
	require.Equal(t, before, st.Snapshot())
}

func TestFetcher_Limits(t *testing.T) {
	_, st, f := setup(t, testutil.WithLeads(testutil.StandardLeads(10)...), testutil.WithLogs(testutil.StandardLogs()...))

	leads, logs := f.Limits()
	require.Equal(t, DefaultLeadsLimit, leads)
	require.Equal(t, DefaultLogsLimit, logs)

	f.SetLimits(4, 1)
	f.SetLimits(0, -1)
	require.NoError(t, f.Refresh(context.Background()))

	snap := st.Snapshot()
	require.Len(t, snap.Leads, 4)
	require.Len(t, snap.Logs, 1)
}

func TestFetcher_ClosedStoreDiscardsResult(t *testing.T) {
	svc := testutil.NewService(t)
	client, err := api.New(svc.URL())
	require.NoError(t, err)
	st := store.New()
	st.Close()

	err = NewFetcher(client, st).Refresh(context.Background())

	require.ErrorIs(t, err, store.ErrClosed)
}
