package schema

import "time"

// ProgressEventType identifies a progress event.
type ProgressEventType string

const (
	// EventSessionStarted marks the start of a pull or push run.
	EventSessionStarted ProgressEventType = "session_started"
	// EventSessionFinished marks the end of a run, successful or not.
	EventSessionFinished ProgressEventType = "session_finished"
	// EventModelsLoaded reports how many models a session will replicate.
	EventModelsLoaded ProgressEventType = "models_loaded"
	// EventEnvironmentActivated marks a repository becoming the active environment.
	EventEnvironmentActivated ProgressEventType = "environment_activated"
	// EventEnvironmentRestored marks the return to the default environment.
	EventEnvironmentRestored ProgressEventType = "environment_restored"
	// EventPhaseStarted announces a phase with its expected total.
	EventPhaseStarted ProgressEventType = "phase_started"
	// EventPhaseAdvanced reports one more completed operation.
	EventPhaseAdvanced ProgressEventType = "phase_advanced"
	// EventPhaseCompleted reports a phase that finished without failure.
	EventPhaseCompleted ProgressEventType = "phase_completed"
	// EventPhaseFailed reports a phase that stopped on failure.
	EventPhaseFailed ProgressEventType = "phase_failed"
)

// ProgressEvent is one discrete progress signal emitted by an orchestrator.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	Session   SessionID         `json:"session"`
	Direction Direction         `json:"direction"`
	Phase     Phase             `json:"phase,omitempty"`
	Repo      RepoName          `json:"repo,omitempty"`
	// RepoIndex is 1-based within RepoCount for push sessions.
	RepoIndex int `json:"repo_index,omitempty"`
	RepoCount int `json:"repo_count,omitempty"`
	// Components and Types are set on models_loaded.
	Components int           `json:"components,omitempty"`
	Types      int           `json:"types,omitempty"`
	Done       int           `json:"done"`
	Total      int           `json:"total"`
	Percent    int           `json:"percent"`
	Elapsed    time.Duration `json:"elapsed_ns,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// Percent returns floor(done*100/total); an empty phase counts as complete.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}
