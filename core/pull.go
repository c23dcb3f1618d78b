package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/modelsync/internal/logx"
	"pkt.systems/modelsync/internal/workpool"
	"pkt.systems/modelsync/schema"
)

func (s *service) Pull(ctx context.Context, req schema.PullRequest) (report schema.PullReport, err error) {
	if ctx == nil {
		return schema.PullReport{}, errors.New("missing context")
	}
	sess, ctx := s.startSession(ctx, schema.DirectionPull)
	report.Session = sess.id
	defer func() {
		report.Elapsed = sess.finish(err)
	}()

	if req.Source == "" {
		return report, schema.ErrNoSource
	}
	source, err := schema.NormalizeRepoName(string(req.Source))
	if err != nil {
		return report, fmt.Errorf("%w: %q", err, req.Source)
	}
	report.Source = source
	pool, err := workpool.New(s.concurrency(req.Concurrency), schema.FailFast)
	if err != nil {
		return report, err
	}
	if !s.auth.IsAuthenticated(ctx) {
		return report, schema.ErrNotAuthenticated
	}
	if err = s.workspace.Init(ctx); err != nil {
		return report, err
	}
	requested := req.Library
	if requested == "" {
		requested = s.cfg.DefaultLibrary
	}
	library, err := s.workspace.ResolveLibrary(requested)
	if err != nil {
		return report, err
	}
	report.Library = library
	sess.log.Info("pull start", "source", source, "library", library, "concurrency", pool.Capacity())

	err = s.env.Use(ctx, source, func(ctx context.Context, repo Repository) error {
		types, err := repo.FetchTypes(ctx)
		if err != nil {
			return err
		}
		components, err := repo.FetchComponents(ctx)
		if err != nil {
			return err
		}
		sess.reporter.Emit(schema.ProgressEvent{
			Type:       schema.EventModelsLoaded,
			Repo:       source,
			Components: len(components),
			Types:      len(types),
		})
		report.Components = schema.PhaseResult{Total: len(components)}
		report.Types = schema.PhaseResult{Total: len(types)}
		report.Components, err = s.pullComponents(ctx, sess, pool, source, library, components)
		if err != nil {
			return err
		}
		report.Types, err = s.pullTypes(ctx, sess, pool, source, types)
		return err
	})
	if err != nil {
		return report, err
	}
	sess.log.Info("pull done", "components", report.Components.Done, "types", report.Types.Done)
	return report, nil
}

func (s *service) pullComponents(ctx context.Context, sess *session, pool *workpool.Pool, source schema.RepoName, library schema.LibraryID, models []schema.ComponentModel) (schema.PhaseResult, error) {
	counter := sess.reporter.Counter(schema.PhaseComponents, len(models), RepoScope{Repo: source})
	tasks := make([]workpool.Task, 0, len(models))
	for _, model := range models {
		model.Library = library
		tasks = append(tasks, func(ctx context.Context) error {
			if err := s.workspace.CreateComponent(ctx, library, model); err != nil {
				logx.WithComponent(sess.log, model).Warn("pull component failed", "err", err)
				return fmt.Errorf("create component %q: %w", model.ID, err)
			}
			counter.Advance()
			return nil
		})
	}
	err := pool.Run(ctx, tasks)
	counter.Finish(err)
	return counter.Result(), err
}

func (s *service) pullTypes(ctx context.Context, sess *session, pool *workpool.Pool, source schema.RepoName, models []schema.TypeModel) (schema.PhaseResult, error) {
	counter := sess.reporter.Counter(schema.PhaseTypes, len(models), RepoScope{Repo: source})
	tasks := make([]workpool.Task, 0, len(models))
	for _, model := range models {
		tasks = append(tasks, func(ctx context.Context) error {
			if err := s.workspace.CreateType(ctx, model); err != nil {
				logx.WithType(sess.log, model).Warn("pull type failed", "err", err)
				return fmt.Errorf("create type %q: %w", model.ID, err)
			}
			counter.Advance()
			return nil
		})
	}
	err := pool.Run(ctx, tasks)
	counter.Finish(err)
	return counter.Result(), err
}
