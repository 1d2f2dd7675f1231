package schema

import "time"

// InactiveAlert is an inactivity alert for a student or a project.
type InactiveAlert struct {
	ID             int64           `json:"id"`
	TargetType     AlertTargetType `json:"target_type"`
	TargetID       string          `json:"target_id"`
	ProjectID      string          `json:"project_id"`
	AlertType      AlertType       `json:"alert_type"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	ThresholdDays  int             `json:"threshold_days"`
	InactiveDays   int             `json:"inactive_days"`
	LastActivityAt *time.Time      `json:"last_activity_at"`
	Resolved       bool            `json:"resolved"`
	ResolvedAt     *time.Time      `json:"resolved_at"`
	ResolvedBy     *string         `json:"resolved_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AlertKey identifies the (target, alert type) pair that may hold at most one open alert.
type AlertKey struct {
	TargetType AlertTargetType
	TargetID   string
	ProjectID  string
	AlertType  AlertType
}

// Key returns the identity of the alert.
func (a InactiveAlert) Key() AlertKey {
	return AlertKey{TargetType: a.TargetType, TargetID: a.TargetID, ProjectID: a.ProjectID, AlertType: a.AlertType}
}

// AlertFilter narrows ListOpenAlerts. Empty fields match everything.
type AlertFilter struct {
	TargetType AlertTargetType
	ProjectID  string
}

// AlertTarget is an entity the alert engine evaluates.
type AlertTarget struct {
	Key          AlertKey
	Label        string
	ExistedSince time.Time
	LastActivity *time.Time
}

// AlertRunSummary counts what one alert engine pass did.
type AlertRunSummary struct {
	ProjectsScanned int      `json:"projects_scanned"`
	TargetsScanned  int      `json:"targets_scanned"`
	Opened          int      `json:"opened"`
	Updated         int      `json:"updated"`
	Resolved        int      `json:"resolved"`
	Failures        []string `json:"failures,omitempty"`
}

// SyncJob is a queued sync hand-off.
type SyncJob struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Status     JobStatus  `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}
