// Package format renders progress events and run reports for humans and machines.
package format

import (
	"fmt"
	"math"
	"time"

	"pkt.systems/modelsync/schema"
)

// Line is one rendered progress line. Transient lines are superseded by the
// next line of the same phase and may be overwritten in place on a terminal.
type Line struct {
	Text      string
	Transient bool
}

// PlainRenderer formats progress events as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatEvent converts a ProgressEvent into user-facing lines.
func (p *PlainRenderer) FormatEvent(event schema.ProgressEvent) []Line {
	switch event.Type {
	case schema.EventModelsLoaded:
		return []Line{{Text: formatLoaded(event)}}
	case schema.EventPhaseStarted, schema.EventPhaseAdvanced:
		return []Line{{Text: formatPhaseProgress(event), Transient: true}}
	case schema.EventPhaseCompleted:
		if event.Phase == schema.PhaseRepository {
			return nil
		}
		return []Line{{Text: fmt.Sprintf("Pulled existing %s", event.Phase)}}
	case schema.EventPhaseFailed:
		if event.Phase == schema.PhaseRepository {
			return []Line{{Text: fmt.Sprintf("Failed to sync %q after %d/%d: %s", event.Repo, event.Done, event.Total, event.Err)}}
		}
		return []Line{{Text: fmt.Sprintf("Failed pulling %s after %d/%d: %s", event.Phase, event.Done, event.Total, event.Err)}}
	case schema.EventSessionFinished:
		if event.Err != "" {
			return []Line{{Text: fmt.Sprintf("Stopped after %ds: %s", Seconds(event.Elapsed), event.Err)}}
		}
		if event.Direction == schema.DirectionPull {
			return []Line{{Text: "Synced data with repository"}, {Text: fmt.Sprintf("Synced in %ds", Seconds(event.Elapsed))}}
		}
		return []Line{{Text: fmt.Sprintf("Synced in %ds", Seconds(event.Elapsed))}}
	default:
		return nil
	}
}

func formatLoaded(event schema.ProgressEvent) string {
	if event.Direction == schema.DirectionPull {
		return fmt.Sprintf("Pulling %d components and %d types from %q", event.Components, event.Types, event.Repo)
	}
	return fmt.Sprintf("Syncing %d components and %d types to %d repositories", event.Components, event.Types, event.RepoCount)
}

func formatPhaseProgress(event schema.ProgressEvent) string {
	if event.Phase == schema.PhaseRepository {
		return fmt.Sprintf("Syncing %q... %d%% (%d/%d)", event.Repo, event.Percent, event.RepoIndex, event.RepoCount)
	}
	return fmt.Sprintf("Pulling existing %s... (%d/%d)", event.Phase, event.Done, event.Total)
}

// Seconds rounds an elapsed duration to whole seconds.
func Seconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
