package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestInitialState_AllStagesPending(t *testing.T) {
	s := InitialState()

	require.False(t, s.Running)
	require.Empty(t, s.CurrentStage)
	require.Len(t, s.Progress, len(Stages))
	for _, id := range Stages {
		require.Equal(t, StageProgress{Status: StatusPending}, s.Progress[id], "stage %s", id)
	}
}

func TestReduce_InitReplacesWholesale(t *testing.T) {
	s := InitialState()
	s.Progress[StageSend] = StageProgress{Status: StatusComplete, Count: 9}

	snap := InitialState()
	snap.Running = true
	snap.CurrentStage = StageEnrich
	snap.Progress[StageGenerate] = StageProgress{Status: StatusComplete, Count: 50}
	snap.Progress[StageEnrich] = StageProgress{Status: StatusRunning}

	next, eff := Reduce(s, Init{State: snap})

	require.Equal(t, snap, next)
	require.Equal(t, Effect{}, eff)
}

func TestReduce_InitClearsCurrentStageWhenNotRunning(t *testing.T) {
	snap := InitialState()
	snap.CurrentStage = StageSend

	next, _ := Reduce(InitialState(), Init{State: snap})

	require.False(t, next.Running)
	require.Empty(t, next.CurrentStage)
}

func TestReduce_StageStarted(t *testing.T) {
	s := InitialState()
	s.Progress[StageEnrich] = StageProgress{Status: StatusPending, Count: 7}

	next, eff := Reduce(s, StageStarted{Stage: StageEnrich})

	require.True(t, next.Running)
	require.Equal(t, StageEnrich, next.CurrentStage)
	require.Equal(t, StageProgress{Status: StatusRunning, Count: 7}, next.Progress[StageEnrich], "count must be left untouched")
	require.Equal(t, Effect{}, eff)

	again, _ := Reduce(next, StageStarted{Stage: StageEnrich})
	require.Equal(t, next, again, "re-asserting running is a no-op")
}

func TestReduce_StageStartedOnTerminalStageIsIgnored(t *testing.T) {
	s := InitialState()
	s.Running = true
	s.CurrentStage = StageMessage
	s.Progress[StageGenerate] = StageProgress{Status: StatusComplete, Count: 50}
	s.Progress[StageMessage] = StageProgress{Status: StatusRunning}

	next, _ := Reduce(s, StageStarted{Stage: StageGenerate})

	require.Equal(t, s, next)
}

func TestReduce_StageCompletedReplacesEntryAndRequestsRefresh(t *testing.T) {
	s := InitialState()
	s.Running = true
	s.CurrentStage = StageSend
	s.Progress[StageSend] = StageProgress{Status: StatusRunning, Count: 3, Sent: intPtr(1)}

	next, eff := Reduce(s, StageCompleted{Stage: StageSend, Failed: intPtr(2)})

	require.Equal(t, StageProgress{Status: StatusComplete, Failed: intPtr(2)}, next.Progress[StageSend])
	require.True(t, eff.Refresh)
	require.Nil(t, eff.Notice)
	require.Equal(t, StageSend, next.CurrentStage, "current stage is left until the next stage starts")
	_, active := next.ActiveStage()
	require.False(t, active)
}

func TestReduce_StageCompletedTwiceKeepsOnlyLatest(t *testing.T) {
	s := InitialState()

	first, _ := Reduce(s, StageCompleted{Stage: StageSend, Count: 10, Sent: intPtr(8), Failed: intPtr(2)})
	second, _ := Reduce(first, StageCompleted{Stage: StageSend, Count: 4})

	require.Equal(t, StageProgress{Status: StatusComplete, Count: 4}, second.Progress[StageSend])
}

func TestReduce_TerminalEvents(t *testing.T) {
	running := InitialState()
	running.Running = true
	running.CurrentStage = StageSend
	running.Progress[StageSend] = StageProgress{Status: StatusRunning}

	tests := []struct {
		name   string
		event  Event
		notice *Notice
	}{
		{
			name:   "pipeline_completed",
			event:  PipelineCompleted{Sent: 30, Failed: 20, Total: 50},
			notice: &Notice{Kind: NoticeSuccess, Text: "Pipeline complete: 30 sent, 20 failed"},
		},
		{
			name:   "pipeline_error",
			event:  PipelineError{Error: "smtp down"},
			notice: &Notice{Kind: NoticeError, Text: "Pipeline error: smtp down"},
		},
		{
			name:   "pipeline_stopped",
			event:  PipelineStopped{Message: "Pipeline stopped by user"},
			notice: &Notice{Kind: NoticeInfo, Text: "Pipeline stopped by user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, eff := Reduce(running, tt.event)

			require.False(t, next.Running)
			require.Empty(t, next.CurrentStage)
			require.Equal(t, running.Progress, next.Progress, "terminal events leave progress alone")
			require.Equal(t, tt.notice, eff.Notice)
		})
	}
}

func TestReduce_PipelineCompletedAfterBackstopHasNoNotice(t *testing.T) {
	next, eff := Reduce(InitialState(), PipelineCompleted{Sent: 1, Failed: 1})

	require.False(t, next.Running)
	require.Nil(t, eff.Notice)
}

func TestReduce_MetricsUpdateIsReturnedAsEffect(t *testing.T) {
	m := Metrics{Total: 5, StatusCounts: map[LeadStatus]int{LeadNew: 5}}

	next, eff := Reduce(InitialState(), MetricsUpdate{Metrics: m})

	require.Equal(t, InitialState(), next)
	require.NotNil(t, eff.Metrics)
	require.Equal(t, m, *eff.Metrics)

	m.StatusCounts[LeadNew] = 0
	require.Equal(t, 5, eff.Metrics.StatusCounts[LeadNew], "effect must not alias the event's map")
}

func TestReduce_UnknownEventIsDropped(t *testing.T) {
	s := InitialState()
	s.Running = true

	next, eff := Reduce(s, Unknown{EventName: "pipeline_stopping"})

	require.Equal(t, s, next)
	require.Equal(t, Effect{}, eff)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := InitialState()
	before := s.Clone()

	_, _ = Reduce(s, StageStarted{Stage: StageGenerate})
	_, _ = Reduce(s, StageCompleted{Stage: StageEnrich, Count: 3})

	require.Equal(t, before, s)
}

// Bootstrap reports enrich running; a later stage_completed for enrich must
// land exactly and leave the current stage alone.
func TestScenario_BootstrapThenStageCompleted(t *testing.T) {
	snap := InitialState()
	snap.Running = true
	snap.CurrentStage = StageEnrich
	snap.Progress[StageGenerate] = StageProgress{Status: StatusComplete, Count: 50}
	snap.Progress[StageEnrich] = StageProgress{Status: StatusRunning, Count: 0}

	s, _ := Reduce(InitialState(), Init{State: snap})
	require.Equal(t, snap, s)

	s, eff := Reduce(s, StageCompleted{Stage: StageEnrich, Count: 50})

	require.Equal(t, StageProgress{Status: StatusComplete, Count: 50}, s.Progress[StageEnrich])
	require.Equal(t, StageEnrich, s.CurrentStage)
	require.True(t, eff.Refresh)

	s, _ = Reduce(s, StageStarted{Stage: StageMessage})
	require.Equal(t, StageMessage, s.CurrentStage)
	active, ok := s.ActiveStage()
	require.True(t, ok)
	require.Equal(t, StageMessage, active)
}
