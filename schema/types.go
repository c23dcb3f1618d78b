package schema

import "encoding/json"

// RepoName identifies a content repository on the remote backend.
type RepoName string

// Environment selects which repository client operations address.
// DefaultEnvironment denotes the canonical/local workspace.
type Environment = RepoName

// DefaultEnvironment is the canonical (local) environment.
const DefaultEnvironment Environment = ""

// LibraryID identifies a component library (a workspace-relative directory).
type LibraryID string

// SessionID identifies one pull or push run. It is never persisted.
type SessionID string

// ModelKind distinguishes the two model categories.
type ModelKind string

const (
	// KindType is a content type model.
	KindType ModelKind = "type"
	// KindComponent is a reusable component model.
	KindComponent ModelKind = "component"
)

// TypeModel is a content type definition. Only the ID is interpreted;
// Raw carries the full definition verbatim.
type TypeModel struct {
	ID    string
	Label string
	Raw   json.RawMessage
}

// ComponentModel is a reusable component definition that belongs to a library.
type ComponentModel struct {
	ID         string
	Name       string
	Library    LibraryID
	Variations []string
	Raw        json.RawMessage
}

// Direction is the direction of a sync session.
type Direction string

const (
	// DirectionPull copies remote models into the local workspace.
	DirectionPull Direction = "pull"
	// DirectionPush replicates local models into target repositories.
	DirectionPush Direction = "push"
)

// Phase names a progress phase within a session.
type Phase string

const (
	// PhaseComponents counts component models during pull.
	PhaseComponents Phase = "components"
	// PhaseTypes counts type models during pull.
	PhaseTypes Phase = "types"
	// PhaseRepository counts push operations for one target repository.
	PhaseRepository Phase = "repository"
)

// ConflictPolicy decides what happens when a model ID already exists at the destination.
type ConflictPolicy string

const (
	// ConflictUpsert overwrites the existing model.
	ConflictUpsert ConflictPolicy = "upsert"
	// ConflictReject fails the operation with ErrModelExists.
	ConflictReject ConflictPolicy = "reject"
)

// FailurePolicy decides how a bounded batch reacts to task failures.
type FailurePolicy string

const (
	// FailFast stops starting new tasks after the first failure.
	FailFast FailurePolicy = "fail-fast"
	// CollectAll runs every task and reports all failures.
	CollectAll FailurePolicy = "collect-all"
)

// DefaultConcurrency is the default number of in-flight client calls.
const DefaultConcurrency = 8
