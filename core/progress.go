package core

import (
	"sync"

	"pkt.systems/modelsync/schema"
)

// Reporter stamps events with their session and delivers them to the sink
// one at a time.
type Reporter struct {
	mu        sync.Mutex
	sink      ProgressSink
	session   schema.SessionID
	direction schema.Direction
}

// NewReporter returns a reporter for one session.
func NewReporter(sink ProgressSink, session schema.SessionID, direction schema.Direction) *Reporter {
	if sink == nil {
		sink = discardSink{}
	}
	return &Reporter{sink: sink, session: session, direction: direction}
}

// Emit delivers event.
func (r *Reporter) Emit(event schema.ProgressEvent) {
	event.Session = r.session
	event.Direction = r.direction
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink.OnProgress(event)
}

// RepoScope places a counter within a push run.
type RepoScope struct {
	Repo  schema.RepoName
	Index int
	Count int
}

// Counter starts a phase with a precomputed total and emits phase_started.
func (r *Reporter) Counter(phase schema.Phase, total int, scope RepoScope) *Counter {
	c := &Counter{reporter: r, phase: phase, total: total, scope: scope}
	c.emit(schema.EventPhaseStarted, "")
	return c
}

// Counter tracks completed operations of one phase.
type Counter struct {
	reporter *Reporter
	phase    schema.Phase
	scope    RepoScope

	mu       sync.Mutex
	done     int
	total    int
	finished bool
}

// Advance records one completed operation. Increment and emission share a
// critical section so emitted counts are strictly increasing.
func (c *Counter) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished || c.done >= c.total {
		return
	}
	c.done++
	c.emit(schema.EventPhaseAdvanced, "")
}

// Finish closes the phase; later calls are ignored.
func (c *Counter) Finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	if err != nil {
		c.emit(schema.EventPhaseFailed, err.Error())
		return
	}
	c.emit(schema.EventPhaseCompleted, "")
}

// Result returns the current count.
func (c *Counter) Result() schema.PhaseResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return schema.PhaseResult{Done: c.done, Total: c.total}
}

// emit must run with c.mu held, except from the constructor.
func (c *Counter) emit(kind schema.ProgressEventType, errText string) {
	c.reporter.Emit(schema.ProgressEvent{
		Type:      kind,
		Phase:     c.phase,
		Repo:      c.scope.Repo,
		RepoIndex: c.scope.Index,
		RepoCount: c.scope.Count,
		Done:      c.done,
		Total:     c.total,
		Percent:   schema.Percent(c.done, c.total),
		Err:       errText,
	})
}
