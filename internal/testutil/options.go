package testutil

import "github.com/zjrosen/pipewatch/internal/pipeline"

// ServiceOption configures a fake Service before it starts.
type ServiceOption func(*Service)

// WithState seeds the pipeline state.
func WithState(st pipeline.State) ServiceOption {
	return func(s *Service) { s.state = st.Clone() }
}

// WithMetrics seeds the metrics.
func WithMetrics(m pipeline.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m.Clone() }
}

// WithLeads seeds the leads.
func WithLeads(leads ...pipeline.Lead) ServiceOption {
	return func(s *Service) { s.leads = append(s.leads, leads...) }
}

// WithLogs seeds the activity log.
func WithLogs(logs ...pipeline.LogEntry) ServiceOption {
	return func(s *Service) { s.logs = append(s.logs, logs...) }
}

// WithMessages seeds messages for a lead.
func WithMessages(leadID int, msgs ...pipeline.LeadMessage) ServiceOption {
	return func(s *Service) { s.messages[leadID] = msgs }
}
