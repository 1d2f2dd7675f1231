package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

var memberHeader = []string{"Student", "Name", "Role", "Commits", "PRs", "Issues Done", "Last Activity", "Inactive Days", "Label"}

func renderDashboard(w io.Writer, snap *schema.DashboardSnapshot, opts Options, duration time.Duration) error {
	switch opts.Output {
	case schema.JSONOut:
		return writeJSON(w, snap)
	case schema.CSVOut:
		return writeCSVWithHeader(w, memberHeader, func(cw *csv.Writer) error {
			for _, row := range memberRows(snap.Members, opts.ThresholdDays, false) {
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		return writeDashboardText(w, snap, opts, duration)
	}
}

func writeDashboardText(w io.Writer, snap *schema.DashboardSnapshot, opts Options, duration time.Duration) error {
	leader := "-"
	if snap.Leader != nil {
		leader = fmt.Sprintf("%s (%s)", snap.Leader.Name, snap.Leader.StudentID)
	}
	_, _ = fmt.Fprintf(w, "Project: %s (%s)\n", snap.ProjectName, snap.ProjectID)
	_, _ = fmt.Fprintf(w, "Team size: %d  Leader: %s\n", snap.TeamSize, leader)
	if gh := snap.GitHub; gh != nil {
		_, _ = fmt.Fprintf(w, "GitHub %s: %d commits, %d pull requests, last commit %s, inactive %d days\n",
			gh.RepoID, gh.TotalCommits, gh.TotalPullRequests, formatTime(gh.LastCommitAt), gh.InactiveDays)
	}
	if jira := snap.Jira; jira != nil {
		_, _ = fmt.Fprintf(w, "Jira %s: %d issues, %d in progress, %d done, last update %s\n",
			jira.ProjectKey, jira.TotalIssues, jira.InProgress, jira.Done, formatTime(jira.LastIssueUpdate))
	}

	if err := writeTable(w, memberHeader, memberRows(snap.Members, opts.ThresholdDays, opts.UseColors)); err != nil {
		return err
	}
	for _, m := range snap.Members {
		if m.Advisory != "" {
			_, _ = fmt.Fprintf(w, "! %s: %s\n", m.Name, m.Advisory)
		}
	}
	_, _ = fmt.Fprintf(w, "Generated at %s in %d ms\n", snap.GeneratedAt.UTC().Format(contract.DateTimeFormat), duration.Milliseconds())
	return nil
}

func memberRows(members []schema.MemberContribution, thresholdDays int, useColors bool) [][]string {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			m.StudentID,
			m.Name,
			string(m.Role),
			strconv.Itoa(m.Commits),
			strconv.Itoa(m.PullRequests),
			strconv.Itoa(m.IssuesCompleted),
			formatTime(m.LastActivity),
			formatDays(m.InactiveDays, schema.NoActivitySentinel),
			inactivityLabel(m.InactiveDays, thresholdDays, useColors),
		})
	}
	return rows
}
