package pipeline

import (
	"fmt"
)

// WireProgress is the JSON shape of one stage entry.
type WireProgress struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Sent   *int   `json:"sent,omitempty"`
	Failed *int   `json:"failed,omitempty"`
}

// WireState is the JSON shape of pipeline_state in the status snapshot and the
// init event. Extra service fields (run_id, should_stop) are ignored.
type WireState struct {
	Running      bool                    `json:"running"`
	CurrentStage *string                 `json:"current_stage"`
	Progress     map[string]WireProgress `json:"progress"`
}

// WireMetrics is the JSON shape of the metrics object.
type WireMetrics struct {
	Total        int            `json:"total"`
	StatusCounts map[string]int `json:"status_counts"`
}

// ToState validates and normalises a wire state. Stages missing from the
// payload default to pending; unknown stage keys are ignored. A current_stage
// that is not one of the four stages (the service uses "starting", "completed",
// "stopped", "error") or that is reported while not running is dropped.
func (w WireState) ToState() (State, error) {
	s := InitialState()
	s.Running = w.Running

	for key, wp := range w.Progress {
		id := StageID(key)
		if !id.Valid() {
			continue
		}
		p, err := wp.toProgress()
		if err != nil {
			return State{}, fmt.Errorf("stage %s: %w", key, err)
		}
		s.Progress[id] = p
	}

	if w.Running && w.CurrentStage != nil && StageID(*w.CurrentStage).Valid() {
		s.CurrentStage = StageID(*w.CurrentStage)
	}
	return s, nil
}

func (w WireProgress) toProgress() (StageProgress, error) {
	status, ok := ParseStageStatus(w.Status)
	if !ok {
		return StageProgress{}, fmt.Errorf("unknown status %q", w.Status)
	}
	if w.Count < 0 {
		return StageProgress{}, fmt.Errorf("negative count %d", w.Count)
	}
	if err := nonNegative("sent", w.Sent); err != nil {
		return StageProgress{}, err
	}
	if err := nonNegative("failed", w.Failed); err != nil {
		return StageProgress{}, err
	}
	return StageProgress{Status: status, Count: w.Count, Sent: w.Sent, Failed: w.Failed}.clone(), nil
}

// ToMetrics validates a wire metrics object. Zero-valued and unknown labels are
// dropped so that unlabeled entities are absent rather than zero.
func (w WireMetrics) ToMetrics() (Metrics, error) {
	if w.Total < 0 {
		return Metrics{}, fmt.Errorf("negative total %d", w.Total)
	}
	m := Metrics{Total: w.Total, StatusCounts: make(map[LeadStatus]int)}
	sum := 0
	for _, label := range LeadStatuses {
		n, ok := w.StatusCounts[string(label)]
		if !ok {
			continue
		}
		if n < 0 {
			return Metrics{}, fmt.Errorf("negative count for %s", label)
		}
		if n == 0 {
			continue
		}
		m.StatusCounts[label] = n
		sum += n
	}
	if sum > w.Total {
		return Metrics{}, fmt.Errorf("status counts sum %d exceeds total %d", sum, w.Total)
	}
	return m, nil
}

// FromState renders s in wire form. Used by the fake service in tests.
func FromState(s State) WireState {
	w := WireState{Running: s.Running, Progress: make(map[string]WireProgress, len(Stages))}
	if s.CurrentStage != "" {
		cs := string(s.CurrentStage)
		w.CurrentStage = &cs
	}
	for _, id := range Stages {
		p := s.Stage(id)
		w.Progress[string(id)] = WireProgress{Status: string(p.Status), Count: p.Count, Sent: p.Sent, Failed: p.Failed}
	}
	return w
}

// FromMetrics renders m in wire form.
func FromMetrics(m Metrics) WireMetrics {
	w := WireMetrics{Total: m.Total, StatusCounts: make(map[string]int, len(m.StatusCounts))}
	for label, n := range m.StatusCounts {
		w.StatusCounts[string(label)] = n
	}
	return w
}

func nonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("negative %s %d", field, *v)
	}
	return nil
}
