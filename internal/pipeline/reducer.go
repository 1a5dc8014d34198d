package pipeline

// Effect describes what applying an event asks of the store beyond the new
// pipeline state. The reducer itself performs none of it.
type Effect struct {
	// Notice is a user-facing message to surface, if any.
	Notice *Notice
	// Refresh asks for a leads/logs/metrics re-read. Progress is never refreshed this way.
	Refresh bool
	// Metrics, when set, replaces the store's metrics wholesale.
	Metrics *Metrics
}

// Reduce applies one event to s and returns the next state. It never mutates s
// and handles every Event, including Unknown, which leaves the state unchanged.
//
// Stage status never moves backwards: a stage_started for a stage that already
// completed or failed is ignored.
func Reduce(s State, ev Event) (State, Effect) {
	next := s.Clone()

	switch e := ev.(type) {
	case Init:
		next = e.State.Clone()
		if !next.Running || !next.CurrentStage.Valid() {
			next.CurrentStage = ""
		}
		return next, Effect{}

	case StageStarted:
		cur := next.Stage(e.Stage)
		if cur.Status.Terminal() {
			return next, Effect{}
		}
		cur.Status = StatusRunning
		next.Progress[e.Stage] = cur
		next.Running = true
		next.CurrentStage = e.Stage
		return next, Effect{}

	case StageCompleted:
		next.Progress[e.Stage] = StageProgress{
			Status: StatusComplete,
			Count:  e.Count,
			Sent:   e.Sent,
			Failed: e.Failed,
		}.clone()
		return next, Effect{Refresh: true}

	case PipelineCompleted:
		wasRunning := next.Running
		next = next.stopped()
		if !wasRunning {
			// The metrics backstop already announced this run.
			return next, Effect{}
		}
		n := CompletionNotice(e.Sent, e.Failed)
		return next, Effect{Notice: &n}

	case MetricsUpdate:
		m := e.Metrics.Clone()
		return next, Effect{Metrics: &m}

	case PipelineError:
		next = next.stopped()
		text := e.Error
		if text == "" {
			text = "pipeline failed"
		}
		n := ErrorNotice("Pipeline error: " + text)
		return next, Effect{Notice: &n}

	case PipelineStopped:
		next = next.stopped()
		text := e.Message
		if text == "" {
			text = "Pipeline stopped"
		}
		n := InfoNotice(text)
		return next, Effect{Notice: &n}

	default:
		return next, Effect{}
	}
}
