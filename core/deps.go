package core

import (
	"context"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

// Authenticator reports whether usable backend credentials exist.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Workspace is the local authoring workspace.
type Workspace interface {
	// Init loads the workspace config; it must precede every model operation.
	Init(ctx context.Context) error
	ResolveLibrary(lib schema.LibraryID) (schema.LibraryID, error)
	ReadAllTypes(ctx context.Context) ([]schema.TypeModel, error)
	ReadAllComponents(ctx context.Context) ([]schema.ComponentModel, error)
	CreateType(ctx context.Context, model schema.TypeModel) error
	CreateComponent(ctx context.Context, library schema.LibraryID, model schema.ComponentModel) error
}

// Repository is a handle bound to exactly one remote repository.
type Repository interface {
	Name() schema.RepoName
	FetchTypes(ctx context.Context) ([]schema.TypeModel, error)
	FetchComponents(ctx context.Context) ([]schema.ComponentModel, error)
	PushType(ctx context.Context, model schema.TypeModel) error
	PushComponent(ctx context.Context, model schema.ComponentModel) error
	InitAssetStorage(ctx context.Context) error
}

// RepositoryOpener binds repository handles.
type RepositoryOpener interface {
	Open(repo schema.RepoName) (Repository, error)
}

// ServiceDeps captures the dependencies of the core service.
type ServiceDeps struct {
	Auth         Authenticator
	Workspace    Workspace
	Repositories RepositoryOpener
	// Sink receives progress events; nil discards them.
	Sink   ProgressSink
	Logger pslog.Logger
}
