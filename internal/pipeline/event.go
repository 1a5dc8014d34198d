package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names as they appear in the stream's "event:" field.
const (
	EventInit              = "init"
	EventStageStarted      = "stage_started"
	EventStageCompleted    = "stage_completed"
	EventPipelineCompleted = "pipeline_completed"
	EventMetricsUpdate     = "metrics_update"
	EventPipelineError     = "pipeline_error"
	EventPipelineStopped   = "pipeline_stopped"
)

// ErrMalformedEvent is wrapped by every decode failure of a known event.
var ErrMalformedEvent = errors.New("malformed event")

// Event is one typed message from the pipeline service. The set of
// implementations is closed; consumers switch on the concrete type.
type Event interface {
	Name() string
	isEvent()
}

// Init replaces the whole pipeline state. Sent first on every stream connection.
type Init struct {
	State State
}

// StageStarted marks a stage as running.
type StageStarted struct {
	Stage StageID
}

// StageCompleted replaces a stage's progress with a completed entry.
type StageCompleted struct {
	Stage  StageID
	Count  int
	Sent   *int
	Failed *int
}

// PipelineCompleted reports the end of a run.
type PipelineCompleted struct {
	Total  int
	Sent   int
	Failed int
}

// MetricsUpdate replaces the lead metrics.
type MetricsUpdate struct {
	Metrics Metrics
}

// PipelineError reports that the run aborted.
type PipelineError struct {
	Error string
}

// PipelineStopped confirms a user-requested stop.
type PipelineStopped struct {
	Message string
}

// Unknown is any event name this client does not model (for example the
// service's pipeline_started and pipeline_stopping). It never changes state.
type Unknown struct {
	EventName string
}

func (Init) Name() string              { return EventInit }
func (StageStarted) Name() string      { return EventStageStarted }
func (StageCompleted) Name() string    { return EventStageCompleted }
func (PipelineCompleted) Name() string { return EventPipelineCompleted }
func (MetricsUpdate) Name() string     { return EventMetricsUpdate }
func (PipelineError) Name() string     { return EventPipelineError }
func (PipelineStopped) Name() string   { return EventPipelineStopped }
func (u Unknown) Name() string         { return u.EventName }

func (Init) isEvent()              {}
func (StageStarted) isEvent()      {}
func (StageCompleted) isEvent()    {}
func (PipelineCompleted) isEvent() {}
func (MetricsUpdate) isEvent()     {}
func (PipelineError) isEvent()     {}
func (PipelineStopped) isEvent()   {}
func (Unknown) isEvent()           {}

type initPayload struct {
	PipelineState *WireState `json:"pipeline_state"`
}

type stagePayload struct {
	Stage  string `json:"stage"`
	Count  int    `json:"count"`
	Sent   *int   `json:"sent"`
	Failed *int   `json:"failed"`
}

type completedPayload struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type stoppedPayload struct {
	Message string `json:"message"`
}

// DecodeEvent turns a named stream message into a typed Event. Unmodelled names
// decode to Unknown without error. Any failure for a modelled name wraps
// ErrMalformedEvent.
func DecodeEvent(name string, data []byte) (Event, error) {
	ev, err := decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, name, err)
	}
	return ev, nil
}

func decode(name string, data []byte) (Event, error) {
	switch name {
	case EventInit:
		var p initPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.PipelineState == nil {
			return nil, errors.New("missing pipeline_state")
		}
		s, err := p.PipelineState.ToState()
		if err != nil {
			return nil, err
		}
		return Init{State: s}, nil

	case EventStageStarted:
		var p stagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		id, err := parseStage(p.Stage)
		if err != nil {
			return nil, err
		}
		return StageStarted{Stage: id}, nil

	case EventStageCompleted:
		var p stagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		id, err := parseStage(p.Stage)
		if err != nil {
			return nil, err
		}
		if p.Count < 0 {
			return nil, fmt.Errorf("negative count %d", p.Count)
		}
		if err := nonNegative("sent", p.Sent); err != nil {
			return nil, err
		}
		if err := nonNegative("failed", p.Failed); err != nil {
			return nil, err
		}
		return StageCompleted{Stage: id, Count: p.Count, Sent: p.Sent, Failed: p.Failed}, nil

	case EventPipelineCompleted:
		var p completedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Sent < 0 || p.Failed < 0 {
			return nil, errors.New("negative sent/failed")
		}
		return PipelineCompleted(p), nil

	case EventMetricsUpdate:
		var w WireMetrics
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		m, err := w.ToMetrics()
		if err != nil {
			return nil, err
		}
		return MetricsUpdate{Metrics: m}, nil

	case EventPipelineError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return PipelineError(p), nil

	case EventPipelineStopped:
		var p stoppedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return PipelineStopped(p), nil

	default:
		return Unknown{EventName: name}, nil
	}
}

func parseStage(s string) (StageID, error) {
	id := StageID(s)
	if !id.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return id, nil
}
