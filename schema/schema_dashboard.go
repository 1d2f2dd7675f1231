package schema

import "time"

// MemberRef identifies a team member in a dashboard.
type MemberRef struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// GitHubSummary is the GitHub rollup of a dashboard.
type GitHubSummary struct {
	RepoID            string     `json:"repo_id"`
	TotalCommits      int        `json:"total_commits"`
	TotalPullRequests int        `json:"total_pull_requests"`
	LastCommitAt      *time.Time `json:"last_commit_at"`
	InactiveDays      int        `json:"inactive_days"`
}

// JiraSummary is the Jira rollup of a dashboard.
type JiraSummary struct {
	ProjectKey      string     `json:"project_key"`
	TotalIssues     int        `json:"total_issues"`
	InProgress      int        `json:"in_progress"`
	Done            int        `json:"done"`
	LastIssueUpdate *time.Time `json:"last_issue_update"`
}

// MemberContribution is a member's trailing-window contribution.
type MemberContribution struct {
	StudentID       string     `json:"student_id"`
	Name            string     `json:"name"`
	Role            TeamRole   `json:"role"`
	Commits         int        `json:"commits"`
	PullRequests    int        `json:"pull_requests"`
	IssuesCompleted int        `json:"issues_completed"`
	LastActivity    *time.Time `json:"last_activity"`
	InactiveDays    int        `json:"inactive_days"`
	Advisory        string     `json:"advisory,omitempty"`
}

// DashboardSnapshot is the derived, cacheable metrics bundle for a project.
type DashboardSnapshot struct {
	ProjectID   string               `json:"project_id"`
	ProjectName string               `json:"project_name"`
	GeneratedAt time.Time            `json:"generated_at"`
	TeamSize    int                  `json:"team_size"`
	Leader      *MemberRef           `json:"leader"`
	GitHub      *GitHubSummary       `json:"github"`
	Jira        *JiraSummary         `json:"jira"`
	Members     []MemberContribution `json:"members"`
}
