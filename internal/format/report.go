package format

import (
	"fmt"

	"pkt.systems/modelsync/schema"
)

// PullSummary renders the final summary of a pull run.
func PullSummary(report schema.PullReport) []string {
	return []string{
		fmt.Sprintf("source %s library %s", report.Source, report.Library),
		fmt.Sprintf("  components %d/%d", report.Components.Done, report.Components.Total),
		fmt.Sprintf("  types      %d/%d", report.Types.Done, report.Types.Total),
	}
}

// PushSummary renders the final summary of a push run, one line per
// repository plus one indented line per failed model.
func PushSummary(report schema.PushReport) []string {
	lines := []string{fmt.Sprintf("%d/%d repositories synced", report.Synced(), len(report.Repositories))}
	for _, repo := range report.Repositories {
		line := fmt.Sprintf("  %-24s %-8s %d/%d", repo.Repo, repo.Status, repo.Done, repo.Total)
		if repo.Err != "" {
			line += "  " + repo.Err
		}
		lines = append(lines, line)
		for _, failure := range repo.Failures {
			id := failure.ID
			if failure.Library != "" {
				id = string(failure.Library) + "/" + id
			}
			lines = append(lines, fmt.Sprintf("    %s %s: %s", failure.Kind, id, failure.Err))
		}
	}
	return lines
}
