package core

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/modelsync/internal/logx"
	"pkt.systems/modelsync/schema"
)

// EnvironmentHook observes activations and restorations.
type EnvironmentHook func(ctx context.Context, repo schema.RepoName, activated bool)

// Switcher owns the process-wide active environment. Remote calls never read
// it; they go through the handle passed to Use.
type Switcher struct {
	opener RepositoryOpener
	hook   EnvironmentHook

	// hold is taken for the whole activation.
	hold sync.Mutex

	mu     sync.RWMutex
	active schema.Environment
}

// NewSwitcher constructs a switcher that binds handles through opener.
func NewSwitcher(opener RepositoryOpener, hook EnvironmentHook) *Switcher {
	return &Switcher{opener: opener, hook: hook}
}

// Active returns the active environment; DefaultEnvironment when none is held.
func (s *Switcher) Active() schema.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Use activates repo, runs fn with a handle bound to it and restores the
// default environment on every exit path, panics included. A second
// activation while one is held fails with ErrEnvironmentBusy.
func (s *Switcher) Use(ctx context.Context, repo schema.RepoName, fn func(ctx context.Context, handle Repository) error) error {
	if repo == schema.DefaultEnvironment {
		return fmt.Errorf("%w: empty repository", schema.ErrInvalidRepo)
	}
	if !s.hold.TryLock() {
		return fmt.Errorf("%w: %q", schema.ErrEnvironmentBusy, s.Active())
	}
	defer s.hold.Unlock()

	handle, err := s.opener.Open(repo)
	if err != nil {
		return err
	}
	s.set(repo)
	log := logx.WithRepo(logx.Ctx(ctx), repo)
	log.Debug("environment activated")
	if s.hook != nil {
		s.hook(ctx, repo, true)
	}
	defer func() {
		s.set(schema.DefaultEnvironment)
		log.Debug("environment restored")
		if s.hook != nil {
			s.hook(ctx, repo, false)
		}
	}()
	return fn(logx.ContextWithRepo(ctx, repo), handle)
}

func (s *Switcher) set(env schema.Environment) {
	s.mu.Lock()
	s.active = env
	s.mu.Unlock()
}
