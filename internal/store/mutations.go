package store

import (
	"github.com/zjrosen/pipewatch/internal/pipeline"
)

// Dispatch applies one stream event through the reducer. A metrics
// replacement is followed by the completion check.
func (s *Store) Dispatch(ev pipeline.Event) error {
	return s.submit("event:"+ev.Name(), func(cur *Snapshot) result {
		next, eff := pipeline.Reduce(cur.Pipeline, ev)
		cur.Pipeline = next

		res := result{changed: true, refresh: eff.Refresh}
		if eff.Notice != nil {
			res.notices = append(res.notices, *eff.Notice)
		}
		if eff.Metrics != nil {
			cur.Metrics = *eff.Metrics
			res.notices = append(res.notices, checkCompletion(cur)...)
		}
		if _, ok := ev.(pipeline.Unknown); ok {
			res.changed = false
		}
		return res
	})
}

// ApplyBootstrap replaces everything the service reported. It is the only
// snapshot write that touches stage progress.
func (s *Store) ApplyBootstrap(st pipeline.State, m pipeline.Metrics, leads []pipeline.Lead, logs []pipeline.LogEntry) error {
	st = st.Clone()
	m = m.Clone()
	leads = pipeline.DedupeLeads(leads)
	logs = append([]pipeline.LogEntry{}, logs...)
	return s.submit("bootstrap", func(cur *Snapshot) result {
		cur.Pipeline, _ = pipeline.Reduce(cur.Pipeline, pipeline.Init{State: st})
		cur.Metrics = m
		cur.Leads = leads
		cur.Logs = logs
		return result{changed: true, notices: checkCompletion(cur)}
	})
}

// ApplyRefresh replaces metrics, leads, and logs. Progress is never touched.
func (s *Store) ApplyRefresh(m pipeline.Metrics, leads []pipeline.Lead, logs []pipeline.LogEntry) error {
	m = m.Clone()
	leads = pipeline.DedupeLeads(leads)
	logs = append([]pipeline.LogEntry{}, logs...)
	return s.submit("refresh", func(cur *Snapshot) result {
		cur.Metrics = m
		cur.Leads = leads
		cur.Logs = logs
		return result{changed: true, notices: checkCompletion(cur)}
	})
}

// SetConnected records the stream's connection flag.
func (s *Store) SetConnected(connected bool) error {
	return s.submit("connected", func(cur *Snapshot) result {
		if cur.Connected == connected {
			return result{}
		}
		cur.Connected = connected
		return result{changed: true, connEvent: true}
	})
}

// CountDropped records one malformed event that was discarded.
func (s *Store) CountDropped() error {
	return s.submit("dropped", func(cur *Snapshot) result {
		cur.DroppedEvents++
		return result{changed: true}
	})
}

// BeginRun seeds the optimistic state for a start command: every stage
// pending, running set.
func (s *Store) BeginRun() error {
	return s.submit("begin_run", func(cur *Snapshot) result {
		cur.Pipeline = pipeline.InitialState()
		cur.Pipeline.Running = true
		return result{changed: true}
	})
}

// MarkStopped clears the running flag and the current stage. notice, if non-nil,
// is published alongside.
func (s *Store) MarkStopped(notice *pipeline.Notice) error {
	return s.submit("stopped", func(cur *Snapshot) result {
		res := result{}
		if notice != nil {
			res.notices = []pipeline.Notice{*notice}
		}
		if !cur.Pipeline.Running && cur.Pipeline.CurrentStage == "" {
			return res
		}
		cur.Pipeline.Running = false
		cur.Pipeline.CurrentStage = ""
		res.changed = true
		return res
	})
}

// Clear returns pipeline state, metrics, leads, and logs to empty. Connection
// status and the dropped-event counter survive.
func (s *Store) Clear() error {
	return s.submit("clear", func(cur *Snapshot) result {
		empty := emptySnapshot()
		cur.Pipeline = empty.Pipeline
		cur.Metrics = empty.Metrics
		cur.Leads = empty.Leads
		cur.Logs = empty.Logs
		return result{changed: true}
	})
}

// Notify publishes a notice without changing state.
func (s *Store) Notify(n pipeline.Notice) error {
	return s.submit("notice", func(*Snapshot) result {
		return result{notices: []pipeline.Notice{n}}
	})
}

func checkCompletion(cur *Snapshot) []pipeline.Notice {
	next, notice, fired := pipeline.DetectCompletion(cur.Pipeline, cur.Metrics)
	if !fired {
		return nil
	}
	cur.Pipeline = next
	return []pipeline.Notice{*notice}
}
