package remote

import (
	"fmt"
	"net/http"

	"pkt.systems/modelsync/schema"
)

// APIError describes a failed remote call. It matches schema.ErrBackend, and
// schema.ErrNotAuthenticated for 401 and 403 responses.
type APIError struct {
	Op   string
	Repo schema.RepoName
	// Status is zero when no response was received.
	Status  int
	Message string
	err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Repo, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Repo, e.Status, e.Message)
}

// Is reports sentinel membership for errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case schema.ErrBackend:
		return true
	case schema.ErrNotAuthenticated:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// Unwrap returns the transport error, if any.
func (e *APIError) Unwrap() error {
	return e.err
}
