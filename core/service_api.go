package core

import (
	"context"

	"pkt.systems/modelsync/schema"
)

// Service replicates content models between the local workspace and remote repositories.
type Service interface {
	// Pull copies every model of one source repository into the local workspace.
	Pull(ctx context.Context, req schema.PullRequest) (schema.PullReport, error)
	// Push replicates the local models into each target repository in order.
	// The report is complete even when an error is returned.
	Push(ctx context.Context, req schema.PushRequest) (schema.PushReport, error)
	// Environment returns the currently active environment.
	Environment() schema.Environment
}
