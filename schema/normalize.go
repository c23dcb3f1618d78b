package schema

import (
	"fmt"
	"path"
	"strings"
)

const maxRepoNameLen = 63

// NormalizeRepoName validates and normalizes a repository name.
// Allowed characters: a-z, 0-9, '-'; no leading or trailing '-'.
func NormalizeRepoName(name string) (RepoName, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" || len(trimmed) > maxRepoNameLen {
		return "", ErrInvalidRepo
	}
	if strings.HasPrefix(trimmed, "-") || strings.HasSuffix(trimmed, "-") {
		return "", ErrInvalidRepo
	}
	for _, r := range trimmed {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '-' {
			continue
		}
		return "", ErrInvalidRepo
	}
	return RepoName(trimmed), nil
}

// NormalizeTargets validates an ordered target list, keeping the order.
func NormalizeTargets(names []string) ([]RepoName, error) {
	if len(names) == 0 {
		return nil, ErrNoTargets
	}
	seen := make(map[RepoName]struct{}, len(names))
	out := make([]RepoName, 0, len(names))
	for _, name := range names {
		repo, err := NormalizeRepoName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		if _, ok := seen[repo]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTarget, repo)
		}
		seen[repo] = struct{}{}
		out = append(out, repo)
	}
	return out, nil
}

// NormalizeLibraryID cleans a library path into its "./dir" form.
func NormalizeLibraryID(lib string) (LibraryID, error) {
	trimmed := strings.TrimSpace(lib)
	if trimmed == "" {
		return "", ErrInvalidLibrary
	}
	cleaned := path.Clean(strings.ReplaceAll(trimmed, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidLibrary
	}
	return LibraryID("./" + cleaned), nil
}

// ParseConflictPolicy parses a conflict policy; empty means upsert.
func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ConflictUpsert):
		return ConflictUpsert, nil
	case string(ConflictReject):
		return ConflictReject, nil
	default:
		return "", fmt.Errorf("%w: conflict %q", ErrInvalidPolicy, value)
	}
}

// ParseFailurePolicy parses a failure policy; empty means fail-fast.
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FailFast):
		return FailFast, nil
	case string(CollectAll):
		return CollectAll, nil
	default:
		return "", fmt.Errorf("%w: failure %q", ErrInvalidPolicy, value)
	}
}
