// Package schema holds the typed enums and record structs shared by every layer.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayLayout is the layout of a calendar day bucket. Days are always UTC.
const DayLayout = "2006-01-02"

// NoActivitySentinel is the inactive-days value reported when a member has no
// activity at all inside the contribution window.
const NoActivitySentinel = 999

// DayOf returns the UTC calendar day bucket for t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay parses a UTC calendar day bucket.
func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, day, time.UTC)
}

// Project is the minimal view of a project needed by the core.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectIntegration links a project to its external systems. Either ref may be empty.
type ProjectIntegration struct {
	ProjectID     string `json:"project_id"`
	GitHubRepoID  string `json:"github_repo_id,omitempty"`
	JiraProjectID string `json:"jira_project_id,omitempty"`
}

// Ref returns the source reference configured for the given source.
func (p ProjectIntegration) Ref(src Source) string {
	switch src {
	case GitHubSource:
		return p.GitHubRepoID
	case JiraSource:
		return p.JiraProjectID
	default:
		return ""
	}
}

// HasAny reports whether at least one source is linked.
func (p ProjectIntegration) HasAny() bool {
	return p.GitHubRepoID != "" || p.JiraProjectID != ""
}

// ExternalIdentity is an account a student uses in an external system.
type ExternalIdentity struct {
	Source  Source `json:"source"`
	Account string `json:"account"`
}

// TeamMember is a roster entry for a project team.
type TeamMember struct {
	StudentID  string              `json:"student_id"`
	Name       string              `json:"name"`
	Role       TeamRole            `json:"role"`
	Status     ParticipationStatus `json:"status"`
	JoinedAt   time.Time           `json:"joined_at"`
	Identities []ExternalIdentity  `json:"identities,omitempty"`
}

// RawEvent is a single event returned by a sync adapter.
type RawEvent struct {
	ID           string          `json:"id"`
	Source       Source          `json:"source"`
	Kind         EventKind       `json:"kind"`
	Actor        string          `json:"actor"`
	OccurredAt   time.Time       `json:"occurred_at"`
	LinesAdded   int             `json:"lines_added,omitempty"`
	LinesDeleted int             `json:"lines_deleted,omitempty"`
	IssueKey     string          `json:"issue_key,omitempty"`
	IssueStatus  string          `json:"issue_status,omitempty"`
	StoryPoints  int             `json:"story_points,omitempty"`
	Hours        decimal.Decimal `json:"hours"`
}

// Watermark marks how far a sync has progressed through a source's event stream.
type Watermark struct {
	Cursor string    `json:"cursor,omitempty"`
	At     time.Time `json:"at"`
}

// IsZero reports whether the watermark has never been set.
func (w Watermark) IsZero() bool {
	return w.Cursor == "" && w.At.IsZero()
}

// After reports whether w is strictly later than other.
func (w Watermark) After(other Watermark) bool {
	return w.At.After(other.At)
}

// FetchResult is what a sync adapter returns for a watermark.
type FetchResult struct {
	Events       []RawEvent
	NewWatermark Watermark
}

// ActivityCounters are the additive counters of an activity record.
type ActivityCounters struct {
	Commits         int             `json:"commits"`
	LinesAdded      int             `json:"lines_added"`
	LinesDeleted    int             `json:"lines_deleted"`
	PullRequests    int             `json:"pull_requests"`
	Reviews         int             `json:"reviews"`
	IssuesCreated   int             `json:"issues_created"`
	IssuesCompleted int             `json:"issues_completed"`
	StoryPoints     int             `json:"story_points"`
	TimeLoggedHours decimal.Decimal `json:"time_logged_hours"`
	Comments        int             `json:"comments"`
}

// Add returns the field-wise sum of c and o.
func (c ActivityCounters) Add(o ActivityCounters) ActivityCounters {
	return ActivityCounters{
		Commits:         c.Commits + o.Commits,
		LinesAdded:      c.LinesAdded + o.LinesAdded,
		LinesDeleted:    c.LinesDeleted + o.LinesDeleted,
		PullRequests:    c.PullRequests + o.PullRequests,
		Reviews:         c.Reviews + o.Reviews,
		IssuesCreated:   c.IssuesCreated + o.IssuesCreated,
		IssuesCompleted: c.IssuesCompleted + o.IssuesCompleted,
		StoryPoints:     c.StoryPoints + o.StoryPoints,
		TimeLoggedHours: c.TimeLoggedHours.Add(o.TimeLoggedHours),
		Comments:        c.Comments + o.Comments,
	}
}

// IsNegative reports whether any counter is below zero.
func (c ActivityCounters) IsNegative() bool {
	return c.Commits < 0 || c.LinesAdded < 0 || c.LinesDeleted < 0 ||
		c.PullRequests < 0 || c.Reviews < 0 || c.IssuesCreated < 0 ||
		c.IssuesCompleted < 0 || c.StoryPoints < 0 || c.Comments < 0 ||
		c.TimeLoggedHours.IsNegative()
}

// IsZero reports whether every counter is zero.
func (c ActivityCounters) IsZero() bool {
	return c.Commits == 0 && c.LinesAdded == 0 && c.LinesDeleted == 0 &&
		c.PullRequests == 0 && c.Reviews == 0 && c.IssuesCreated == 0 &&
		c.IssuesCompleted == 0 && c.StoryPoints == 0 && c.Comments == 0 &&
		c.TimeLoggedHours.IsZero()
}

// ActivityRecord is one row per (student, project, UTC day).
type ActivityRecord struct {
	StudentID string `json:"student_id"`
	ProjectID string `json:"project_id"`
	Day       string `json:"day"`
	ActivityCounters
}

// ActivityDelta is the counter change one event contributes to a record.
// StudentID is empty for unattributed events, which are ledgered but not bucketed.
type ActivityDelta struct {
	EventID    string
	Source     Source
	Kind       EventKind
	StudentID  string
	OccurredAt time.Time
	Counters   ActivityCounters
	Issue      *IssueState
}

// Day returns the UTC day bucket the delta lands in.
func (d ActivityDelta) Day() string {
	return DayOf(d.OccurredAt)
}

// IssueState is the latest known status of a Jira issue.
type IssueState struct {
	IssueKey  string    `json:"issue_key"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MergeBatch is the unit the store applies atomically: deltas plus the watermark advance.
type MergeBatch struct {
	ProjectID string
	Source    Source
	Deltas    []ActivityDelta
	Watermark Watermark
}

// MergeOutcome reports what a store did with a MergeBatch.
type MergeOutcome struct {
	EventsApplied   int
	Duplicates      int
	RecordsUpserted int
	Watermark       Watermark
}

// SourceResult summarizes one source's part of a sync.
type SourceResult struct {
	Source          Source    `json:"source"`
	Ref             string    `json:"ref"`
	EventsFetched   int       `json:"events_fetched"`
	EventsProcessed int       `json:"events_processed"`
	Duplicates      int       `json:"duplicates"`
	Unattributed    int       `json:"unattributed"`
	RecordsUpserted int       `json:"records_upserted"`
	Watermark       Watermark `json:"watermark"`
}

// SyncResult is the outcome of syncing one project.
type SyncResult struct {
	ProjectID       string               `json:"project_id"`
	EventsProcessed int                  `json:"events_processed"`
	RecordsUpserted int                  `json:"records_upserted"`
	NewWatermark    map[Source]Watermark `json:"new_watermark"`
	Sources         []SourceResult       `json:"sources"`
}

// ActivityTotals is a summed view of activity for a student over a window.
type ActivityTotals struct {
	StudentID    string
	Counters     ActivityCounters
	LastActivity *time.Time
}

// CommitStats summarizes the commit ledger of a project.
type CommitStats struct {
	TotalCommits      int
	TotalPullRequests int
	LastCommitAt      *time.Time
}

// IssueStats summarizes the Jira issue table of a project.
type IssueStats struct {
	TotalIssues     int
	InProgress      int
	Done            int
	LastIssueUpdate *time.Time
}
