package core

import (
	"context"
	"time"

	"pkt.systems/modelsync/internal/logx"
	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

type sessionKey struct{}

// session is the ephemeral state of one run. Nothing of it is persisted.
type session struct {
	id        schema.SessionID
	direction schema.Direction
	started   time.Time
	reporter  *Reporter
	log       pslog.Logger
}

func (s *service) startSession(ctx context.Context, direction schema.Direction) (*session, context.Context) {
	id := newSessionID()
	if s.logger != nil {
		ctx = pslog.ContextWithLogger(ctx, s.logger)
	}
	log := logx.WithSession(ctx, id, direction)
	ctx = logx.ContextWithSessionLogger(ctx, log, id)
	sess := &session{
		id:        id,
		direction: direction,
		started:   time.Now(),
		reporter:  NewReporter(s.sink, id, direction),
		log:       log,
	}
	ctx = context.WithValue(ctx, sessionKey{}, sess)
	sess.reporter.Emit(schema.ProgressEvent{Type: schema.EventSessionStarted})
	log.Info(string(direction) + " session start")
	return sess, ctx
}

func sessionFromContext(ctx context.Context) *session {
	sess, _ := ctx.Value(sessionKey{}).(*session)
	return sess
}

// finish emits session_finished and returns the elapsed time.
func (s *session) finish(err error) time.Duration {
	elapsed := time.Since(s.started)
	event := schema.ProgressEvent{Type: schema.EventSessionFinished, Elapsed: elapsed}
	if err != nil {
		event.Err = err.Error()
		s.log.Warn(string(s.direction)+" session failed", "err", err, "duration_ms", elapsed.Milliseconds())
	} else {
		s.log.Info(string(s.direction)+" session done", "duration_ms", elapsed.Milliseconds())
	}
	s.reporter.Emit(event)
	return elapsed
}

// environmentHook emits environment events on the session found in ctx.
func environmentHook(ctx context.Context, repo schema.RepoName, activated bool) {
	sess := sessionFromContext(ctx)
	if sess == nil {
		return
	}
	kind := schema.EventEnvironmentRestored
	if activated {
		kind = schema.EventEnvironmentActivated
	}
	sess.reporter.Emit(schema.ProgressEvent{Type: kind, Repo: repo})
}
