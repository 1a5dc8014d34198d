package testutil

import (
	"fmt"

	"github.com/zjrosen/pipewatch/internal/pipeline"
)

// RunningEnrich is a state mid-run: generate finished with 50 leads and enrich running.
func RunningEnrich() pipeline.State {
	s := pipeline.InitialState()
	s.Running = true
	s.CurrentStage = pipeline.StageEnrich
	s.Progress[pipeline.StageGenerate] = pipeline.StageProgress{Status: pipeline.StatusComplete, Count: 50}
	s.Progress[pipeline.StageEnrich] = pipeline.StageProgress{Status: pipeline.StatusRunning}
	return s
}

// Metrics builds metrics from alternating label/count pairs; total is their sum plus extra.
func Metrics(extra int, pairs ...any) pipeline.Metrics {
	m := pipeline.Metrics{StatusCounts: map[pipeline.LeadStatus]int{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		n := pairs[i+1].(int)
		m.StatusCounts[pairs[i].(pipeline.LeadStatus)] = n
		m.Total += n
	}
	m.Total += extra
	return m
}

// StandardLeads returns n leads with ids 1..n.
func StandardLeads(n int) []pipeline.Lead {
	industries := []string{"SaaS", "Fintech", "Healthcare", "Logistics"}
	out := make([]pipeline.Lead, 0, n)
	for i := 1; i <= n; i++ {
		conf := 0.5 + float64(i%5)/10
		out = append(out, pipeline.Lead{
			ID:         i,
			Name:       fmt.Sprintf("Lead %d", i),
			Company:    fmt.Sprintf("Company %d", i),
			Title:      "VP Engineering",
			Industry:   industries[i%len(industries)],
			Status:     string(pipeline.LeadNew),
			Confidence: &conf,
		})
	}
	return out
}

// StandardLogs returns a short activity log, newest first.
func StandardLogs() []pipeline.LogEntry {
	return []pipeline.LogEntry{
		{TS: "2026-01-01T10:00:03", Stage: "enrich", Level: "INFO", Message: "Enriched 50 leads"},
		{TS: "2026-01-01T10:00:02", Stage: "generate", Level: "INFO", Message: "Generated 50 leads"},
		{TS: "2026-01-01T10:00:01", Stage: "system", Level: "INFO", Message: "Pipeline started"},
	}
}
