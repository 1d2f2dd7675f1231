// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/teampulse/schema"
)

// GitClient defines the git operations the mirror sync adapter needs.
// This allows the adapter to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetActivityLog returns the raw commit log with numstat for commits reachable
	// from heads but not from exclude. Unknown exclude ids are ignored.
	GetActivityLog(ctx context.Context, repoPath string, heads, exclude []string) ([]byte, error)

	// GetRepoHeads returns the sorted, distinct object ids of every ref in the repository.
	GetRepoHeads(ctx context.Context, repoPath string) ([]string, error)
}

// SyncAdapter fetches raw events from one external system.
type SyncAdapter interface {
	// FetchEventsSince returns events newer than the watermark for a source reference.
	// Network and I/O failures wrap ErrTransientFetch.
	FetchEventsSince(ctx context.Context, src schema.Source, ref string, wm schema.Watermark) (schema.FetchResult, error)
}

// IntegrationLookup resolves which external systems a project is linked to.
type IntegrationLookup interface {
	GetIntegration(ctx context.Context, projectID string) (schema.ProjectIntegration, error)
}

// RosterLookup resolves a project's active team members and their external accounts.
type RosterLookup interface {
	GetActiveTeamMembers(ctx context.Context, projectID string) ([]schema.TeamMember, error)
}

// ProjectStore reads projects and rosters. Writes only happen through the seed loader.
type ProjectStore interface {
	IntegrationLookup
	RosterLookup

	GetProject(ctx context.Context, projectID string) (schema.Project, error)
	ListProjects(ctx context.Context) ([]schema.Project, error)
	UpsertProject(ctx context.Context, p schema.Project, integ schema.ProjectIntegration, members []schema.TeamMember) error
}

// ActivityStore is the durable per-(student, project, day) counter table,
// the event ledger and the sync watermarks.
type ActivityStore interface {
	// GetWatermark returns the stored watermark or the zero watermark.
	GetWatermark(ctx context.Context, projectID string, src schema.Source) (schema.Watermark, error)

	// ApplyBatch merges deltas and advances the watermark in one transaction.
	// Events already in the ledger are skipped.
	ApplyBatch(ctx context.Context, batch schema.MergeBatch) (schema.MergeOutcome, error)

	// ListActivity returns records for a project between two UTC days, inclusive.
	// An empty projectID lists every project.
	ListActivity(ctx context.Context, projectID, fromDay, toDay string) ([]schema.ActivityRecord, error)

	// MemberTotals sums counters per student from fromDay onwards.
	MemberTotals(ctx context.Context, projectID, fromDay string) ([]schema.ActivityTotals, error)

	// LastStudentActivity returns each student's most recent activity day for a project.
	LastStudentActivity(ctx context.Context, projectID string) (map[string]time.Time, error)

	// LastProjectActivity returns the time of the newest ledgered event for a project.
	LastProjectActivity(ctx context.Context, projectID string) (*time.Time, error)

	CommitStats(ctx context.Context, projectID string) (schema.CommitStats, error)
	IssueStats(ctx context.Context, projectID string) (schema.IssueStats, error)
}

// AlertStore persists inactivity alerts.
type AlertStore interface {
	// GetOpenAlert returns the unresolved alert for a key, or nil when there is none.
	GetOpenAlert(ctx context.Context, key schema.AlertKey) (*schema.InactiveAlert, error)

	// CreateAlert inserts a new unresolved alert and sets its ID.
	// A second unresolved alert for the same key fails with ErrIntegrity.
	CreateAlert(ctx context.Context, alert *schema.InactiveAlert) error

	// UpdateOpenAlert refreshes the staleness fields of an unresolved alert in place.
	UpdateOpenAlert(ctx context.Context, alert *schema.InactiveAlert) error

	// ResolveAlert marks an alert resolved. It reports false when it was already resolved.
	ResolveAlert(ctx context.Context, alertID int64, at time.Time, resolvedBy *string) (bool, error)

	GetAlert(ctx context.Context, alertID int64) (schema.InactiveAlert, error)
	ListOpenAlerts(ctx context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error)
	ListAlerts(ctx context.Context) ([]schema.InactiveAlert, error)
}

// JobStore persists queued sync jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job schema.SyncJob) error
	UpdateJob(ctx context.Context, job schema.SyncJob) error
	GetJob(ctx context.Context, jobID string) (schema.SyncJob, error)
	ListJobs(ctx context.Context, limit int) ([]schema.SyncJob, error)
}

// Store is everything the durable backend provides.
type Store interface {
	ProjectStore
	ActivityStore
	AlertStore
	JobStore

	GetStatus(ctx context.Context) (schema.StoreStatus, error)
	Close() error
}

// CacheStore defines the interface for dashboard cache storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	Delete(key string) error
	Clear() error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}
