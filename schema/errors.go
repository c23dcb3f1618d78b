package schema

import "errors"

var (
	// ErrNotAuthenticated indicates no usable credentials are available.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBackend indicates a remote repository call failed.
	ErrBackend = errors.New("backend error")
	// ErrInvalidRepo indicates an invalid repository name.
	ErrInvalidRepo = errors.New("invalid repository")
	// ErrInvalidLibrary indicates a library that is not configured in the workspace.
	ErrInvalidLibrary = errors.New("invalid library")
	// ErrInvalidModel indicates a model definition without a usable identifier.
	ErrInvalidModel = errors.New("invalid model")
	// ErrModelExists indicates a conflicting model under the reject policy.
	ErrModelExists = errors.New("model already exists")
	// ErrNoTargets indicates a push without target repositories.
	ErrNoTargets = errors.New("no target repositories")
	// ErrDuplicateTarget indicates a target repository listed more than once.
	ErrDuplicateTarget = errors.New("duplicate target repository")
	// ErrNoSource indicates a pull without a source repository.
	ErrNoSource = errors.New("no source repository")
	// ErrEnvironmentBusy indicates an environment is already active.
	ErrEnvironmentBusy = errors.New("environment already active")
	// ErrWorkspaceNotInitialized indicates a model operation before workspace init.
	ErrWorkspaceNotInitialized = errors.New("workspace not initialized")
	// ErrInvalidPolicy indicates an unknown conflict or failure policy.
	ErrInvalidPolicy = errors.New("invalid policy")
)
