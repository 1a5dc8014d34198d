// Package pipeline holds the client-side model of a remote outreach pipeline run:
// stage progress, lead metrics, the typed events pushed by the service, and the
// pure functions that fold those events into state.
package pipeline

import (
	"maps"
	"slices"
)

// StageID names one of the four pipeline stages.
type StageID string

const (
	StageGenerate StageID = "generate"
	StageEnrich   StageID = "enrich"
	StageMessage  StageID = "message"
	StageSend     StageID = "send"
)

// Stages lists every stage in execution order. The order is for display only.
var Stages = []StageID{StageGenerate, StageEnrich, StageMessage, StageSend}

// Valid reports whether s is one of the four known stages.
func (s StageID) Valid() bool {
	return slices.Contains(Stages, s)
}

// StageStatus is the lifecycle of a single stage.
type StageStatus string

const (
	StatusPending  StageStatus = "pending"
	StatusRunning  StageStatus = "running"
	StatusComplete StageStatus = "complete"
	StatusFailed   StageStatus = "failed"
)

// ParseStageStatus maps a wire status to a StageStatus. The service reports
// finished stages as "completed", which is accepted as an alias.
func ParseStageStatus(s string) (StageStatus, bool) {
	switch s {
	case "pending", "":
		return StatusPending, true
	case "running":
		return StatusRunning, true
	case "complete", "completed":
		return StatusComplete, true
	case "failed":
		return StatusFailed, true
	default:
		return StatusPending, false
	}
}

// Rank orders statuses: pending < running < complete == failed.
func (s StageStatus) Rank() int {
	switch s {
	case StatusRunning:
		return 1
	case StatusComplete, StatusFailed:
		return 2
	default:
		return 0
	}
}

// Terminal reports whether the stage has finished.
func (s StageStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// StageProgress is the progress of one stage. Sent and Failed are only
// reported for the send stage.
type StageProgress struct {
	Status StageStatus
	Count  int
	Sent   *int
	Failed *int
}

// State is the pipeline state as seen by the client.
//
// CurrentStage is the stage most recently started (or reported by a snapshot).
// It is cleared whenever Running becomes false and otherwise left alone until
// the next stage starts, so it may briefly name a stage that already completed.
// Use ActiveStage for the stage that is actually executing.
type State struct {
	Running      bool
	CurrentStage StageID
	Progress     map[StageID]StageProgress
}

// InitialState returns the pending, not-running state used at start and after reset.
func InitialState() State {
	progress := make(map[StageID]StageProgress, len(Stages))
	for _, id := range Stages {
		progress[id] = StageProgress{Status: StatusPending}
	}
	return State{Progress: progress}
}

// Clone returns a deep copy so callers can never alias store-owned maps.
func (s State) Clone() State {
	out := State{Running: s.Running, CurrentStage: s.CurrentStage}
	out.Progress = make(map[StageID]StageProgress, len(Stages))
	for id, p := range s.Progress {
		out.Progress[id] = p.clone()
	}
	for _, id := range Stages {
		if _, ok := out.Progress[id]; !ok {
			out.Progress[id] = StageProgress{Status: StatusPending}
		}
	}
	return out
}

// Stage returns the progress for id, defaulting to pending.
func (s State) Stage(id StageID) StageProgress {
	if p, ok := s.Progress[id]; ok {
		return p
	}
	return StageProgress{Status: StatusPending}
}

// ActiveStage returns the stage that is executing right now: present only while
// the pipeline runs and only if that stage's status is running.
func (s State) ActiveStage() (StageID, bool) {
	if !s.Running || s.CurrentStage == "" {
		return "", false
	}
	if s.Stage(s.CurrentStage).Status != StatusRunning {
		return "", false
	}
	return s.CurrentStage, true
}

// stopped returns s with the run marked finished.
func (s State) stopped() State {
	s.Running = false
	s.CurrentStage = ""
	return s
}

func (p StageProgress) clone() StageProgress {
	out := StageProgress{Status: p.Status, Count: p.Count}
	if p.Sent != nil {
		v := *p.Sent
		out.Sent = &v
	}
	if p.Failed != nil {
		v := *p.Failed
		out.Failed = &v
	}
	return out
}

// LeadStatus is the label the service assigns to a lead as it moves through the stages.
type LeadStatus string

const (
	LeadNew      LeadStatus = "NEW"
	LeadEnriched LeadStatus = "ENRICHED"
	LeadMessaged LeadStatus = "MESSAGED"
	LeadSent     LeadStatus = "SENT"
	LeadFailed   LeadStatus = "FAILED"
)

// LeadStatuses lists the labels in pipeline order.
var LeadStatuses = []LeadStatus{LeadNew, LeadEnriched, LeadMessaged, LeadSent, LeadFailed}

// Metrics are the lead counts reported by the service. Labels with no leads
// may be absent from StatusCounts.
type Metrics struct {
	Total        int
	StatusCounts map[LeadStatus]int
}

// Count returns the number of leads with the given label (0 when absent).
func (m Metrics) Count(status LeadStatus) int {
	return m.StatusCounts[status]
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	return Metrics{Total: m.Total, StatusCounts: maps.Clone(m.StatusCounts)}
}

// Lead is a display record for one prospect.
type Lead struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Company    string   `json:"company"`
	Title      string   `json:"title"`
	Industry   string   `json:"industry"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
}

// DedupeLeads keeps the first occurrence of each lead id, preserving order.
func DedupeLeads(leads []Lead) []Lead {
	seen := make(map[int]struct{}, len(leads))
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// LogEntry is one line of the service's activity log.
type LogEntry struct {
	TS      string `json:"ts"`
	Stage   string `json:"stage"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LeadMessage is one generated outreach variant set for a lead.
type LeadMessage struct {
	EmailA string `json:"email_a"`
	EmailB string `json:"email_b"`
	DMA    string `json:"dm_a"`
	DMB    string `json:"dm_b"`
	CTA    string `json:"cta"`
}
