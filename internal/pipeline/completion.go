package pipeline

// DetectCompletion is the metrics backstop for a missed pipeline_completed
// event. When the run is still marked running, total > 0, and every lead is
// either SENT or FAILED, it returns the stopped state and a summary notice.
// Otherwise it returns s unchanged and fired == false.
//
// Because it requires Running, it fires at most once per run.
func DetectCompletion(s State, m Metrics) (next State, notice *Notice, fired bool) {
	if !s.Running || m.Total <= 0 {
		return s, nil, false
	}
	sent := m.Count(LeadSent)
	failed := m.Count(LeadFailed)
	if sent+failed < m.Total {
		return s, nil, false
	}
	n := CompletionNotice(sent, failed)
	return s.Clone().stopped(), &n, true
}
