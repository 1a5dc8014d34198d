package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/pubsub"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

func runningEnrich() pipeline.State {
	s := pipeline.InitialState()
	s.Running = true
	s.CurrentStage = pipeline.StageEnrich
	s.Progress[pipeline.StageGenerate] = pipeline.StageProgress{Status: pipeline.StatusComplete, Count: 50}
	s.Progress[pipeline.StageEnrich] = pipeline.StageProgress{Status: pipeline.StatusRunning}
	return s
}

func metrics(total int, counts map[pipeline.LeadStatus]int) pipeline.Metrics {
	return pipeline.Metrics{Total: total, StatusCounts: counts}
}

func nextNotice(t *testing.T, ch <-chan pubsub.Event[pipeline.Notice]) pipeline.Notice {
	t.Helper()
	select {
	case ev := <-ch:
		require.Equal(t, pubsub.NoticeEvent, ev.Type)
		return ev.Payload
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notice")
		return pipeline.Notice{}
	}
}

func requireNoNotice(t *testing.T, ch <-chan pubsub.Event[pipeline.Notice]) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected notice %q", ev.Payload.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_StartsPending(t *testing.T) {
	s := newStore(t)

	snap := s.Snapshot()

	require.Equal(t, pipeline.InitialState(), snap.Pipeline)
	require.Zero(t, snap.Metrics.Total)
	require.Empty(t, snap.Leads)
	require.Empty(t, snap.Logs)
	require.False(t, snap.Connected)
	require.Zero(t, snap.Seq)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyBootstrap(runningEnrich(), metrics(1, map[pipeline.LeadStatus]int{pipeline.LeadNew: 1}),
		[]pipeline.Lead{{ID: 1}}, nil))

	snap := s.Snapshot()
	snap.Pipeline.Progress[pipeline.StageSend] = pipeline.StageProgress{Status: pipeline.StatusFailed}
	snap.Metrics.StatusCounts[pipeline.LeadNew] = 99
	snap.Leads[0].Name = "mutated"

	again := s.Snapshot()
	require.Equal(t, pipeline.StatusPending, again.Pipeline.Progress[pipeline.StageSend].Status)
	require.Equal(t, 1, again.Metrics.Count(pipeline.LeadNew))
	require.Empty(t, again.Leads[0].Name)
}

func TestStore_DispatchAppliesReducerInOrder(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Dispatch(pipeline.Init{State: runningEnrich()}))
	require.NoError(t, s.Dispatch(pipeline.StageCompleted{Stage: pipeline.StageEnrich, Count: 50}))
	require.NoError(t, s.Dispatch(pipeline.StageStarted{Stage: pipeline.StageMessage}))

	snap := s.Snapshot()
	require.Equal(t, pipeline.StageProgress{Status: pipeline.StatusComplete, Count: 50}, snap.Pipeline.Progress[pipeline.StageEnrich])
	require.Equal(t, pipeline.StageMessage, snap.Pipeline.CurrentStage)
	require.EqualValues(t, 3, snap.Seq)
}

func TestStore_StageCompletedTriggersRefreshHook(t *testing.T) {
	var refreshes atomic.Int32
	s := newStore(t, WithRefreshHook(func() { refreshes.Add(1) }))

	require.NoError(t, s.Dispatch(pipeline.StageStarted{Stage: pipeline.StageGenerate}))
	require.EqualValues(t, 0, refreshes.Load())

	require.NoError(t, s.Dispatch(pipeline.StageCompleted{Stage: pipeline.StageGenerate, Count: 5}))
	require.EqualValues(t, 1, refreshes.Load())
}

func TestStore_UnknownEventIsNotAChange(t *testing.T) {
	s := newStore(t)
	sub := s.Subscribe(context.Background())

	require.NoError(t, s.Dispatch(pipeline.Unknown{EventName: "pipeline_started"}))

	require.Zero(t, s.Snapshot().Seq)
	select {
	case <-sub:
		t.Fatal("unknown events must not publish")
	default:
	}
}

func TestStore_PipelineCompletedPublishesNotice(t *testing.T) {
	s := newStore(t)
	notices := s.Notices(context.Background())
	require.NoError(t, s.Dispatch(pipeline.Init{State: runningEnrich()}))

	require.NoError(t, s.Dispatch(pipeline.PipelineCompleted{Total: 50, Sent: 30, Failed: 20}))

	require.Equal(t, pipeline.CompletionNotice(30, 20), nextNotice(t, notices))
	require.False(t, s.Snapshot().Pipeline.Running)
}

func TestStore_MetricsBackstopFiresOnce(t *testing.T) {
	s := newStore(t)
	notices := s.Notices(context.Background())
	require.NoError(t, s.Dispatch(pipeline.Init{State: runningEnrich()}))

	done := metrics(50, map[pipeline.LeadStatus]int{pipeline.LeadSent: 30, pipeline.LeadFailed: 20})
	require.NoError(t, s.Dispatch(pipeline.MetricsUpdate{Metrics: done}))

	snap := s.Snapshot()
	require.False(t, snap.Pipeline.Running)
	require.Empty(t, snap.Pipeline.CurrentStage)
	require.Equal(t, done, snap.Metrics)
	require.Equal(t, "Pipeline complete: 30 sent, 20 failed", nextNotice(t, notices).Text)

	// A late pipeline_completed and a repeated metrics update stay silent.
	require.NoError(t, s.Dispatch(pipeline.PipelineCompleted{Sent: 30, Failed: 20}))
	require.NoError(t, s.Dispatch(pipeline.MetricsUpdate{Metrics: done}))
	require.NoError(t, s.ApplyRefresh(done, nil, nil))
	requireNoNotice(t, notices)
}

func TestStore_ZeroTotalNeverCompletes(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(pipeline.Init{State: runningEnrich()}))

	require.NoError(t, s.Dispatch(pipeline.MetricsUpdate{Metrics: metrics(0, map[pipeline.LeadStatus]int{})}))

	require.True(t, s.Snapshot().Pipeline.Running)
}

func TestStore_RefreshNeverTouchesProgress(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(pipeline.Init{State: runningEnrich()}))
	before := s.Snapshot().Pipeline

	leads := []pipeline.Lead{{ID: 1, Name: "a"}, {ID: 1, Name: "dup"}, {ID: 2, Name: "b"}}
	logs := []pipeline.LogEntry{{Message: "hello"}}
	require.NoError(t, s.ApplyRefresh(metrics(10, map[pipeline.LeadStatus]int{pipeline.LeadEnriched: 4}), leads, logs))

	snap := s.Snapshot()
	require.Equal(t, before, snap.Pipeline)
	require.Equal(t, []pipeline.Lead{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, snap.Leads)
	require.Equal(t, logs, snap.Logs)
	require.Equal(t, 4, snap.Metrics.Count(pipeline.LeadEnriched))
}

func TestStore_BootstrapReplacesProgress(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(pipeline.StageCompleted{Stage: pipeline.StageSend, Count: 3}))

	require.NoError(t, s.ApplyBootstrap(runningEnrich(), metrics(0, nil), nil, nil))

	snap := s.Snapshot()
	require.Equal(t, runningEnrich(), snap.Pipeline)
}

func TestStore_SetConnectedPublishesOnlyOnFlip(t *testing.T) {
	s := newStore(t)
	sub := s.Subscribe(context.Background())

	require.NoError(t, s.SetConnected(true))
	require.NoError(t, s.SetConnected(true))
	require.NoError(t, s.SetConnected(false))

	ev := <-sub
	require.Equal(t, pubsub.ConnectionEvent, ev.Type)
	require.True(t, ev.Payload.Connected)
	ev = <-sub
	require.False(t, ev.Payload.Connected)
	require.EqualValues(t, 2, s.Snapshot().Seq)
}

func TestStore_BeginRunAndMarkStopped(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(pipeline.StageCompleted{Stage: pipeline.StageGenerate, Count: 9}))

	require.NoError(t, s.BeginRun())
	snap := s.Snapshot()
	require.True(t, snap.Pipeline.Running)
	require.Equal(t, pipeline.StatusPending, snap.Pipeline.Progress[pipeline.StageGenerate].Status)

	notices := s.Notices(context.Background())
	fail := pipeline.ErrorNotice("Pipeline already running")
	require.NoError(t, s.MarkStopped(&fail))
	require.False(t, s.Snapshot().Pipeline.Running)
	require.Equal(t, fail, nextNotice(t, notices))
}

func TestStore_ClearKeepsConnection(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetConnected(true))
	require.NoError(t, s.CountDropped())
	require.NoError(t, s.ApplyBootstrap(runningEnrich(), metrics(3, map[pipeline.LeadStatus]int{pipeline.LeadNew: 3}),
		[]pipeline.Lead{{ID: 1}}, []pipeline.LogEntry{{Message: "x"}}))

	require.NoError(t, s.Clear())

	snap := s.Snapshot()
	require.Equal(t, pipeline.InitialState(), snap.Pipeline)
	require.Zero(t, snap.Metrics.Total)
	require.Empty(t, snap.Leads)
	require.Empty(t, snap.Logs)
	require.True(t, snap.Connected)
	require.Equal(t, 1, snap.DroppedEvents)
}

func TestStore_CloseDiscardsLaterMutations(t *testing.T) {
	s := New()
	s.Close()
	s.Close()

	require.ErrorIs(t, s.Dispatch(pipeline.StageStarted{Stage: pipeline.StageSend}), ErrClosed)
	require.ErrorIs(t, s.ApplyRefresh(pipeline.Metrics{}, nil, nil), ErrClosed)
	require.Equal(t, pipeline.InitialState(), s.Snapshot().Pipeline)
}

func TestStore_ConcurrentWritersLastWriterWins(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Dispatch(pipeline.MetricsUpdate{Metrics: metrics(5, map[pipeline.LeadStatus]int{pipeline.LeadNew: 5})})
		}()
		go func() {
			defer wg.Done()
			_ = s.ApplyRefresh(metrics(7, map[pipeline.LeadStatus]int{pipeline.LeadEnriched: 7}), nil, nil)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.EqualValues(t, 40, snap.Seq)
	require.Contains(t, []int{5, 7}, snap.Metrics.Total)
}
