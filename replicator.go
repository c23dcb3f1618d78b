// Package modelsync composes the credential store, local workspace, remote
// client and progress fanout into a ready replication service.
package modelsync

import (
	"errors"
	"net/http"
	"time"

	"pkt.systems/modelsync/core"
	"pkt.systems/modelsync/internal/appconfig"
	"pkt.systems/modelsync/internal/auth"
	"pkt.systems/modelsync/internal/eventbus"
	"pkt.systems/modelsync/internal/remote"
	"pkt.systems/modelsync/internal/version"
	"pkt.systems/modelsync/internal/workspace"
	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

// Config configures the compositor.
type Config struct {
	Service   schema.ServiceConfig
	Workspace string
	Auth      AuthConfig
	API       APIConfig
}

// AuthConfig locates credentials.
type AuthConfig struct {
	File   string
	Cookie string
}

// APIConfig configures the remote endpoints.
type APIConfig struct {
	CustomTypesURL string
	ACLProviderURL string
	Timeout        time.Duration
	UserAgent      string
}

// Deps captures optional dependencies.
type Deps struct {
	// Sinks receive every progress event in order.
	Sinks      []core.ProgressSink
	Logger     pslog.Logger
	HTTPClient *http.Client
	// Getenv overrides os.Getenv for credential lookup.
	Getenv func(string) string
}

// Replicator is a ready service plus the stores it was built from.
type Replicator struct {
	core.Service
	Auth      *auth.Store
	Workspace *workspace.Workspace
	Bus       *eventbus.Bus
}

// ConfigFromApp maps the application config onto the compositor config.
func ConfigFromApp(cfg appconfig.Config) Config {
	return Config{
		Service: schema.ServiceConfig{
			Concurrency:    cfg.Pull.Concurrency,
			Conflict:       schema.ConflictPolicy(cfg.ConflictPolicy),
			DefaultLibrary: schema.LibraryID(cfg.Pull.Library),
		},
		Workspace: cfg.Workspace,
		Auth: AuthConfig{
			File:   cfg.Auth.File,
			Cookie: cfg.Auth.Cookie,
		},
		API: APIConfig{
			CustomTypesURL: cfg.API.CustomTypesURL,
			ACLProviderURL: cfg.API.ACLProviderURL,
			Timeout:        time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		},
	}
}

// New constructs a replicator.
func New(cfg Config, deps Deps) (*Replicator, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	if cfg.Workspace == "" {
		return nil, errors.New("workspace root is required")
	}

	logger := deps.Logger
	authStore, err := auth.NewStore(cfg.Auth.File, auth.Options{
		CookieName: cfg.Auth.Cookie,
		Getenv:     deps.Getenv,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(cfg.Workspace, workspace.Options{
		Conflict: cfg.Service.Conflict,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	client, err := remote.New(remote.Options{
		CustomTypesURL: cfg.API.CustomTypesURL,
		ACLProviderURL: cfg.API.ACLProviderURL,
		Token:          authStore.Token,
		UserAgent:      userAgent,
		Timeout:        cfg.API.Timeout,
		Conflict:       cfg.Service.Conflict,
		HTTPClient:     deps.HTTPClient,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(logger)
	sinks := make([]core.ProgressSink, 0, len(deps.Sinks)+1)
	for _, sink := range deps.Sinks {
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}
	sinks = append(sinks, bus)
	var sink core.ProgressSink = bus
	if len(sinks) > 1 {
		sink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Service, core.ServiceDeps{
		Auth:         authStore,
		Workspace:    ws,
		Repositories: remoteOpener{client: client},
		Sink:         sink,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return &Replicator{Service: service, Auth: authStore, Workspace: ws, Bus: bus}, nil
}

// remoteOpener adapts the concrete client to core.RepositoryOpener.
type remoteOpener struct {
	client *remote.Client
}

func (o remoteOpener) Open(repo schema.RepoName) (core.Repository, error) {
	handle, err := o.client.Open(repo)
	if err != nil {
		return nil, err
	}
	return handle, nil
}
