package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_Init(t *testing.T) {
	data := []byte(`{
		"pipeline_state": {
			"running": true,
			"current_stage": "enrich",
			"run_id": "abc",
			"should_stop": false,
			"progress": {
				"generate": {"status": "completed", "count": 50},
				"enrich": {"status": "running", "count": 0},
				"bogus": {"status": "running", "count": 1}
			}
		},
		"timestamp": "2026-01-01T00:00:00"
	}`)

	ev, err := DecodeEvent(EventInit, data)
	require.NoError(t, err)

	init, ok := ev.(Init)
	require.True(t, ok)
	require.True(t, init.State.Running)
	require.Equal(t, StageEnrich, init.State.CurrentStage)
	require.Equal(t, StageProgress{Status: StatusComplete, Count: 50}, init.State.Progress[StageGenerate])
	require.Equal(t, StageProgress{Status: StatusRunning}, init.State.Progress[StageEnrich])
	require.Equal(t, StageProgress{Status: StatusPending}, init.State.Progress[StageSend])
	require.Len(t, init.State.Progress, len(Stages))
}

func TestDecodeEvent_InitDropsLifecycleCurrentStage(t *testing.T) {
	for _, cs := range []string{"starting", "completed", "stopped", "error"} {
		t.Run(cs, func(t *testing.T) {
			data := []byte(`{"pipeline_state": {"running": true, "current_stage": "` + cs + `", "progress": {}}}`)

			ev, err := DecodeEvent(EventInit, data)
			require.NoError(t, err)
			require.Empty(t, ev.(Init).State.CurrentStage)
		})
	}
}

func TestDecodeEvent_StageCompletedForSend(t *testing.T) {
	ev, err := DecodeEvent(EventStageCompleted, []byte(`{"stage":"send","sent":30,"failed":20}`))
	require.NoError(t, err)

	sc := ev.(StageCompleted)
	require.Equal(t, StageSend, sc.Stage)
	require.Equal(t, 0, sc.Count)
	require.Equal(t, 30, *sc.Sent)
	require.Equal(t, 20, *sc.Failed)
}

func TestDecodeEvent_MetricsUpdateDropsZeroLabels(t *testing.T) {
	ev, err := DecodeEvent(EventMetricsUpdate, []byte(`{"total":50,"status_counts":{"SENT":30,"FAILED":20,"NEW":0,"ARCHIVED":4}}`))
	require.NoError(t, err)

	m := ev.(MetricsUpdate).Metrics
	require.Equal(t, 50, m.Total)
	require.Equal(t, map[LeadStatus]int{LeadSent: 30, LeadFailed: 20}, m.StatusCounts)
}

func TestDecodeEvent_TerminalPayloads(t *testing.T) {
	ev, err := DecodeEvent(EventPipelineCompleted, []byte(`{"run_id":"r1","total":50,"sent":30,"failed":20}`))
	require.NoError(t, err)
	require.Equal(t, PipelineCompleted{Total: 50, Sent: 30, Failed: 20}, ev)

	ev, err = DecodeEvent(EventPipelineError, []byte(`{"error":"quota exceeded"}`))
	require.NoError(t, err)
	require.Equal(t, PipelineError{Error: "quota exceeded"}, ev)

	ev, err = DecodeEvent(EventPipelineStopped, []byte(`{"message":"Pipeline stopped by user"}`))
	require.NoError(t, err)
	require.Equal(t, PipelineStopped{Message: "Pipeline stopped by user"}, ev)
}

func TestDecodeEvent_UnknownNameIsNotAnError(t *testing.T) {
	ev, err := DecodeEvent("pipeline_stopping", []byte(`not even json`))
	require.NoError(t, err)
	require.Equal(t, Unknown{EventName: "pipeline_stopping"}, ev)
	require.Equal(t, "pipeline_stopping", ev.Name())
}

func TestDecodeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		evt  string
		data string
	}{
		{"invalid json", EventStageStarted, `{"stage":`},
		{"unknown stage", EventStageStarted, `{"stage":"deploy"}`},
		{"negative count", EventStageCompleted, `{"stage":"enrich","count":-1}`},
		{"negative sent", EventStageCompleted, `{"stage":"send","sent":-3}`},
		{"init without state", EventInit, `{"timestamp":"now"}`},
		{"init bad status", EventInit, `{"pipeline_state":{"running":false,"progress":{"send":{"status":"exploded"}}}}`},
		{"metrics sum exceeds total", EventMetricsUpdate, `{"total":3,"status_counts":{"SENT":2,"FAILED":2}}`},
		{"metrics negative", EventMetricsUpdate, `{"total":3,"status_counts":{"SENT":-1}}`},
		{"completed negative", EventPipelineCompleted, `{"sent":-1,"failed":0}`},
		{"error wrong type", EventPipelineError, `{"error":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent(tt.evt, []byte(tt.data))
			require.ErrorIs(t, err, ErrMalformedEvent)
			require.ErrorContains(t, err, tt.evt)
			require.Nil(t, ev)
		})
	}
}

func TestParseStageStatus(t *testing.T) {
	tests := []struct {
		in   string
		want StageStatus
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"", StatusPending, true},
		{"running", StatusRunning, true},
		{"complete", StatusComplete, true},
		{"completed", StatusComplete, true},
		{"failed", StatusFailed, true},
		{"done", StatusPending, false},
	}
	for _, tt := range tests {
		got, ok := ParseStageStatus(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestDedupeLeads(t *testing.T) {
	leads := []Lead{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 1, Name: "a-dup"}}

	require.Equal(t, []Lead{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, DedupeLeads(leads))
	require.Empty(t, DedupeLeads(nil))
}
