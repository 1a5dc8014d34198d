package api

import "github.com/zjrosen/pipewatch/internal/pipeline"

// StatusResponse is the body of GET /pipeline/status.
type StatusResponse struct {
	PipelineState pipeline.WireState   `json:"pipeline_state"`
	Metrics       pipeline.WireMetrics `json:"metrics"`
}

// StartRequest is the body of POST /pipeline/start.
type StartRequest struct {
	DryRun bool `json:"dry_run"`
	AIMode bool `json:"ai_mode"`
	Count  int  `json:"count"`
}

// CommandResponse is the acknowledgement body of every command endpoint.
type CommandResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type leadsResponse struct {
	Items []pipeline.Lead `json:"items"`
}

type logsResponse struct {
	Items []pipeline.LogEntry `json:"items"`
}

type messagesResponse struct {
	Error    string                 `json:"error"`
	Messages []pipeline.LeadMessage `json:"messages"`
}
