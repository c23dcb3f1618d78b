package logx

import (
	"context"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	repoKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session id and direction if present.
func WithSession(ctx context.Context, sessionID schema.SessionID, direction schema.Direction) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	if direction != "" {
		log = log.With("direction", direction)
	}
	return log
}

// WithRepo annotates the logger with the repository name when available.
func WithRepo(log pslog.Logger, repo schema.RepoName) pslog.Logger {
	if repo != "" {
		log = log.With("repo", repo)
	}
	return log
}

// WithComponent annotates the logger with component model metadata.
func WithComponent(log pslog.Logger, model schema.ComponentModel) pslog.Logger {
	log = log.With("kind", schema.KindComponent, "model", model.ID)
	if model.Library != "" {
		log = log.With("library", model.Library)
	}
	return log
}

// WithType annotates the logger with type model metadata.
func WithType(log pslog.Logger, model schema.TypeModel) pslog.Logger {
	return log.With("kind", schema.KindType, "model", model.ID)
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}

// ContextWithRepo stores the active repository marker on the context.
func ContextWithRepo(ctx context.Context, repo schema.RepoName) context.Context {
	if ctx == nil || repo == "" {
		return ctx
	}
	return context.WithValue(ctx, repoKey, repo)
}

// RepoFromContext returns the repository marker stored by ContextWithRepo.
func RepoFromContext(ctx context.Context) (schema.RepoName, bool) {
	if ctx == nil {
		return "", false
	}
	repo, ok := ctx.Value(repoKey).(schema.RepoName)
	return repo, ok && repo != ""
}
