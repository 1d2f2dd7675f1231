package schema

import (
	"fmt"
	"strings"
)

// Custom string types for type safety.
type (
	// Source identifies an external system that activity is pulled from.
	Source string

	// EventKind is the kind of raw event a Source emits.
	EventKind string

	// ParticipationStatus is a team member's participation state.
	ParticipationStatus string

	// TeamRole is a team member's role inside a project team.
	TeamRole string

	// AlertTargetType is the kind of entity an alert is raised for.
	AlertTargetType string

	// AlertType is the kind of condition an alert reports.
	AlertType string

	// Severity is the urgency of an alert.
	Severity string

	// JobStatus is the lifecycle state of a queued sync job.
	JobStatus string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the activity store.
	DatabaseBackend string

	// CacheBackend represents the backend for the dashboard cache.
	CacheBackend string
)

// All sources supported.
const (
	GitHubSource Source = "github"
	JiraSource   Source = "jira"
)

// All event kinds supported.
const (
	CommitEvent          EventKind = "commit"
	PullRequestEvent     EventKind = "pull_request"
	ReviewEvent          EventKind = "review"
	IssueCreatedEvent    EventKind = "issue_created"
	IssueTransitionEvent EventKind = "issue_transition"
	CommentEvent         EventKind = "comment"
	WorklogEvent         EventKind = "worklog"
)

// All participation statuses supported.
const (
	ActiveParticipation ParticipationStatus = "ACTIVE"
	LeftParticipation   ParticipationStatus = "LEFT"
)

// All team roles supported.
const (
	LeaderRole TeamRole = "LEADER"
	MemberRole TeamRole = "MEMBER"
)

// All alert target types supported.
const (
	StudentTarget AlertTargetType = "STUDENT"
	ProjectTarget AlertTargetType = "PROJECT"
)

// All alert types supported.
const (
	InactivityAlert AlertType = "INACTIVITY"
)

// All severities supported.
const (
	InfoSeverity     Severity = "INFO"
	WarningSeverity  Severity = "WARNING"
	CriticalSeverity Severity = "CRITICAL"
)

// All job statuses supported.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	CSVOut     OutputMode = "csv"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All cache backends supported. The SQL ones share names with DatabaseBackend.
const (
	SQLiteCache     CacheBackend = "sqlite"
	MySQLCache      CacheBackend = "mysql"
	PostgreSQLCache CacheBackend = "postgresql"
	RedisCache      CacheBackend = "redis"
	MemoryCache     CacheBackend = "memory" // default
	NoneCache       CacheBackend = "none"
)

// AllSources lists every source in sync order.
var AllSources = []Source{GitHubSource, JiraSource}

// ValidSources lists all valid sources.
var ValidSources = map[Source]struct{}{
	GitHubSource: {},
	JiraSource:   {},
}

// ValidEventKinds lists all valid event kinds.
var ValidEventKinds = map[EventKind]struct{}{
	CommitEvent:          {},
	PullRequestEvent:     {},
	ReviewEvent:          {},
	IssueCreatedEvent:    {},
	IssueTransitionEvent: {},
	CommentEvent:         {},
	WorklogEvent:         {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	JSONOut:    {},
	CSVOut:     {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid activity store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// ValidCacheBackends lists all valid dashboard cache backends.
var ValidCacheBackends = map[CacheBackend]struct{}{
	SQLiteCache:     {},
	MySQLCache:      {},
	PostgreSQLCache: {},
	RedisCache:      {},
	MemoryCache:     {},
	NoneCache:       {},
}

// ParseSource converts a raw string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ValidSources[src]; !ok {
		return "", fmt.Errorf("invalid source '%s'. must be github or jira", s)
	}
	return src, nil
}

// ParseEventKind converts a raw string into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	kind := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ValidEventKinds[kind]; !ok {
		return "", fmt.Errorf("invalid event kind '%s'", s)
	}
	return kind, nil
}

// ParseParticipationStatus converts a raw string into a ParticipationStatus.
func ParseParticipationStatus(s string) (ParticipationStatus, error) {
	switch ParticipationStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case ActiveParticipation:
		return ActiveParticipation, nil
	case LeftParticipation:
		return LeftParticipation, nil
	default:
		return "", fmt.Errorf("invalid participation status '%s'. must be ACTIVE or LEFT", s)
	}
}

// ParseTeamRole converts a raw string into a TeamRole.
func ParseTeamRole(s string) (TeamRole, error) {
	switch TeamRole(strings.ToUpper(strings.TrimSpace(s))) {
	case LeaderRole:
		return LeaderRole, nil
	case MemberRole:
		return MemberRole, nil
	default:
		return "", fmt.Errorf("invalid team role '%s'. must be LEADER or MEMBER", s)
	}
}

// ParseAlertTargetType converts a raw string into an AlertTargetType.
func ParseAlertTargetType(s string) (AlertTargetType, error) {
	switch AlertTargetType(strings.ToUpper(strings.TrimSpace(s))) {
	case StudentTarget:
		return StudentTarget, nil
	case ProjectTarget:
		return ProjectTarget, nil
	default:
		return "", fmt.Errorf("invalid alert target type '%s'. must be STUDENT or PROJECT", s)
	}
}

// ParseSeverity converts a raw string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case InfoSeverity:
		return InfoSeverity, nil
	case WarningSeverity:
		return WarningSeverity, nil
	case CriticalSeverity:
		return CriticalSeverity, nil
	default:
		return "", fmt.Errorf("invalid severity '%s'", s)
	}
}

// ParseJobStatus converts a raw string into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(s))) {
	case JobQueued:
		return JobQueued, nil
	case JobRunning:
		return JobRunning, nil
	case JobCompleted:
		return JobCompleted, nil
	case JobFailed:
		return JobFailed, nil
	default:
		return "", fmt.Errorf("invalid job status '%s'", s)
	}
}

// IsTerminal reports whether the job will not run again.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}
