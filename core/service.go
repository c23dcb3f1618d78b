package core

import (
	"errors"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg       schema.ServiceConfig
	auth      Authenticator
	workspace Workspace
	env       *Switcher
	sink      ProgressSink
	logger    pslog.Logger
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Auth == nil {
		return nil, errors.New("core: authenticator is required")
	}
	if deps.Workspace == nil {
		return nil, errors.New("core: workspace is required")
	}
	if deps.Repositories == nil {
		return nil, errors.New("core: repository opener is required")
	}
	sink := deps.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &service{
		cfg:       normalized,
		auth:      deps.Auth,
		workspace: deps.Workspace,
		env:       NewSwitcher(deps.Repositories, environmentHook),
		sink:      sink,
		logger:    deps.Logger,
	}, nil
}

func (s *service) Environment() schema.Environment {
	return s.env.Active()
}

func (s *service) concurrency(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.cfg.Concurrency
}
