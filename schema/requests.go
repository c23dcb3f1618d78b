package schema

import "time"

// PullRequest describes one pull run.
type PullRequest struct {
	Source RepoName
	// Library receives pulled component models; empty selects the first configured library.
	Library     LibraryID
	Concurrency int
}

// PushRequest describes one push run.
type PushRequest struct {
	Targets     []RepoName
	Concurrency int
	Policy      FailurePolicy
}

// PhaseResult captures the final counter of one phase.
type PhaseResult struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Complete reports whether the phase reached its expected total.
func (r PhaseResult) Complete() bool {
	return r.Done == r.Total
}

// PullReport summarizes a pull run.
type PullReport struct {
	Session    SessionID     `json:"session"`
	Source     RepoName      `json:"source"`
	Library    LibraryID     `json:"library"`
	Components PhaseResult   `json:"components"`
	Types      PhaseResult   `json:"types"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// RepositoryStatus is the outcome of one target repository in a push run.
type RepositoryStatus string

const (
	// RepositorySynced means every model was pushed.
	RepositorySynced RepositoryStatus = "synced"
	// RepositoryFailed means at least one operation failed.
	RepositoryFailed RepositoryStatus = "failed"
	// RepositorySkipped means the repository was never activated.
	RepositorySkipped RepositoryStatus = "skipped"
)

// ModelFailure records one failed model operation.
type ModelFailure struct {
	Kind    ModelKind `json:"kind"`
	ID      string    `json:"id"`
	Library LibraryID `json:"library,omitempty"`
	Err     string    `json:"error"`
}

// RepositoryResult summarizes one target repository of a push run.
type RepositoryResult struct {
	Repo     RepoName         `json:"repo"`
	Status   RepositoryStatus `json:"status"`
	Done     int              `json:"done"`
	Total    int              `json:"total"`
	Err      string           `json:"error,omitempty"`
	Failures []ModelFailure   `json:"failures,omitempty"`
}

// PushReport summarizes a push run.
type PushReport struct {
	Session      SessionID          `json:"session"`
	Components   int                `json:"components"`
	Types        int                `json:"types"`
	Repositories []RepositoryResult `json:"repositories"`
	Elapsed      time.Duration      `json:"elapsed_ns"`
}

// Synced returns the number of repositories that finished without failure.
func (r PushReport) Synced() int {
	count := 0
	for _, repo := range r.Repositories {
		if repo.Status == RepositorySynced {
			count++
		}
	}
	return count
}
