// Package workpool runs batches of tasks with a bounded number in flight.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"pkt.systems/modelsync/schema"
)

// ErrInvalidCapacity indicates a non-positive pool capacity.
var ErrInvalidCapacity = errors.New("workpool: capacity must be positive")

// Task is one unit of work submitted to a Pool.
type Task func(ctx context.Context) error

// Pool caps the number of simultaneously executing tasks.
type Pool struct {
	capacity int
	policy   schema.FailurePolicy
	inflight atomic.Int64
	peak     atomic.Int64
}

// New constructs a pool with the given capacity and failure policy.
func New(capacity int, policy schema.FailurePolicy) (*Pool, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	parsed, err := schema.ParseFailurePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	return &Pool{capacity: capacity, policy: parsed}, nil
}

// Capacity returns the maximum number of in-flight tasks.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Policy returns the failure policy.
func (p *Pool) Policy() schema.FailurePolicy {
	return p.policy
}

// Peak returns the highest number of tasks observed in flight at once.
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}

// Run executes tasks with at most Capacity in flight and returns once every
// started task has returned.
//
// Under FailFast no task starts after the first failure and the first error
// is returned; tasks already running keep the caller's context and their
// results are discarded. Under CollectAll every task runs and failures are
// returned as a *BatchError.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}
	// gate only controls submission; running tasks receive ctx untouched.
	g, gate := errgroup.WithContext(ctx)
	g.SetLimit(p.capacity)

	var (
		mu       sync.Mutex
		failures []TaskFailure
	)
	for idx, task := range tasks {
		if gate.Err() != nil {
			break
		}
		g.Go(func() error {
			if gate.Err() != nil {
				return nil
			}
			err := p.invoke(ctx, task)
			if err == nil {
				return nil
			}
			if p.policy == schema.CollectAll {
				mu.Lock()
				failures = append(failures, TaskFailure{Index: idx, Err: err})
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
		return &BatchError{Failures: failures}
	}
	return nil
}

func (p *Pool) invoke(ctx context.Context, task Task) error {
	current := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if current <= peak || p.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	return task(ctx)
}

// TaskFailure is one failed task of a CollectAll batch.
type TaskFailure struct {
	Index int
	Err   error
}

// BatchError aggregates every failure of a CollectAll batch.
type BatchError struct {
	Failures []TaskFailure
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 task failed: %v", e.Failures[0].Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Err.Error())
	}
	return fmt.Sprintf("%d tasks failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual task errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}
