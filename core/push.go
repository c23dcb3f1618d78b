package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/modelsync/internal/logx"
	"pkt.systems/modelsync/internal/workpool"
	"pkt.systems/modelsync/schema"
)

func (s *service) Push(ctx context.Context, req schema.PushRequest) (report schema.PushReport, err error) {
	if ctx == nil {
		return schema.PushReport{}, errors.New("missing context")
	}
	sess, ctx := s.startSession(ctx, schema.DirectionPush)
	report.Session = sess.id
	defer func() {
		report.Elapsed = sess.finish(err)
	}()

	names := make([]string, 0, len(req.Targets))
	for _, target := range req.Targets {
		names = append(names, string(target))
	}
	targets, err := schema.NormalizeTargets(names)
	if err != nil {
		return report, err
	}
	policy, err := schema.ParseFailurePolicy(string(req.Policy))
	if err != nil {
		return report, err
	}
	pool, err := workpool.New(s.concurrency(req.Concurrency), policy)
	if err != nil {
		return report, err
	}
	if !s.auth.IsAuthenticated(ctx) {
		return report, schema.ErrNotAuthenticated
	}
	if err = s.workspace.Init(ctx); err != nil {
		return report, err
	}

	// One snapshot serves every target.
	components, err := s.workspace.ReadAllComponents(ctx)
	if err != nil {
		return report, err
	}
	types, err := s.workspace.ReadAllTypes(ctx)
	if err != nil {
		return report, err
	}
	report.Components = len(components)
	report.Types = len(types)
	total := len(components) + len(types)
	report.Repositories = make([]schema.RepositoryResult, len(targets))
	for i, target := range targets {
		report.Repositories[i] = schema.RepositoryResult{Repo: target, Status: schema.RepositorySkipped, Total: total}
	}
	sess.reporter.Emit(schema.ProgressEvent{
		Type:       schema.EventModelsLoaded,
		RepoCount:  len(targets),
		Components: len(components),
		Types:      len(types),
	})
	sess.log.Info("push start", "components", len(components), "types", len(types), "repositories", len(targets), "concurrency", pool.Capacity(), "policy", policy)

	var errs []error
	for i, target := range targets {
		scope := RepoScope{Repo: target, Index: i + 1, Count: len(targets)}
		repoErr := s.pushRepository(ctx, sess, pool, scope, components, types, &report.Repositories[i])
		if repoErr == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("push %s: %w", target, repoErr))
		if policy == schema.FailFast || ctx.Err() != nil {
			break
		}
	}
	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	sess.log.Info("push done", "repositories", report.Synced())
	return report, nil
}

// pushRepository pushes the snapshot into one repository and fills result.
func (s *service) pushRepository(ctx context.Context, sess *session, pool *workpool.Pool, scope RepoScope, components []schema.ComponentModel, types []schema.TypeModel, result *schema.RepositoryResult) error {
	log := logx.WithRepo(sess.log, scope.Repo)
	var (
		mu       sync.Mutex
		failures []schema.ModelFailure
	)
	record := func(failure schema.ModelFailure) {
		mu.Lock()
		failures = append(failures, failure)
		mu.Unlock()
	}

	err := s.env.Use(ctx, scope.Repo, func(ctx context.Context, repo Repository) error {
		log.Info("push repository start", "index", scope.Index, "count", scope.Count)
		counter := sess.reporter.Counter(schema.PhaseRepository, len(components)+len(types), scope)
		defer func() {
			final := counter.Result()
			result.Done = final.Done
		}()
		if err := repo.InitAssetStorage(ctx); err != nil {
			counter.Finish(err)
			return fmt.Errorf("init asset storage: %w", err)
		}
		tasks := make([]workpool.Task, 0, len(components)+len(types))
		for _, model := range components {
			tasks = append(tasks, func(ctx context.Context) error {
				if err := repo.PushComponent(ctx, model); err != nil {
					logx.WithComponent(log, model).Warn("push component failed", "err", err)
					record(schema.ModelFailure{Kind: schema.KindComponent, ID: model.ID, Library: model.Library, Err: err.Error()})
					return fmt.Errorf("component %q: %w", model.ID, err)
				}
				counter.Advance()
				return nil
			})
		}
		for _, model := range types {
			tasks = append(tasks, func(ctx context.Context) error {
				if err := repo.PushType(ctx, model); err != nil {
					logx.WithType(log, model).Warn("push type failed", "err", err)
					record(schema.ModelFailure{Kind: schema.KindType, ID: model.ID, Err: err.Error()})
					return fmt.Errorf("type %q: %w", model.ID, err)
				}
				counter.Advance()
				return nil
			})
		}
		err := pool.Run(ctx, tasks)
		counter.Finish(err)
		return err
	})

	mu.Lock()
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Kind != failures[j].Kind {
			return failures[i].Kind < failures[j].Kind
		}
		return failures[i].ID < failures[j].ID
	})
	result.Failures = failures
	mu.Unlock()
	if err != nil {
		result.Status = schema.RepositoryFailed
		result.Err = err.Error()
		log.Warn("push repository failed", "err", err, "done", result.Done, "total", result.Total)
		return err
	}
	result.Status = schema.RepositorySynced
	log.Info("push repository done", "done", result.Done, "total", result.Total)
	return nil
}
