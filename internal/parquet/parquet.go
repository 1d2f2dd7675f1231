// Package parquet exports activity records and inactivity alerts to Parquet
// files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/teampulse/schema"
	"github.com/parquet-go/parquet-go"
)

// ActivityRow is one (student, project, day) activity record.
// This struct maps to the activity_records database table.
type ActivityRow struct {
	StudentID string `parquet:"student_id,snappy"`
	ProjectID string `parquet:"project_id,snappy"`

	// Day is the UTC calendar day, formatted YYYY-MM-DD
	Day string `parquet:"activity_date,snappy"`

	Commits         int32 `parquet:"commits,snappy"`
	LinesAdded      int32 `parquet:"lines_added,snappy"`
	LinesDeleted    int32 `parquet:"lines_deleted,snappy"`
	PullRequests    int32 `parquet:"pull_requests,snappy"`
	Reviews         int32 `parquet:"reviews,snappy"`
	IssuesCreated   int32 `parquet:"issues_created,snappy"`
	IssuesCompleted int32 `parquet:"issues_completed,snappy"`
	StoryPoints     int32 `parquet:"story_points,snappy"`
	Comments        int32 `parquet:"comments,snappy"`

	// TimeLoggedHours keeps the exact decimal text; parquet has no arbitrary-precision float
	TimeLoggedHours string `parquet:"time_logged_hours,snappy"`
}

// AlertRow is one inactivity alert, open or resolved.
// This struct maps to the inactive_alerts database table.
type AlertRow struct {
	ID             int64      `parquet:"id,snappy"`
	TargetType     string     `parquet:"target_type,snappy"`
	TargetID       string     `parquet:"target_id,snappy"`
	ProjectID      string     `parquet:"project_id,snappy"`
	AlertType      string     `parquet:"alert_type,snappy"`
	Severity       string     `parquet:"severity,snappy"`
	Message        string     `parquet:"message,snappy"`
	ThresholdDays  int32      `parquet:"threshold_days,snappy"`
	InactiveDays   int32      `parquet:"inactive_days,snappy"`
	LastActivityAt *time.Time `parquet:"last_activity_at,optional,snappy"`
	Resolved       bool       `parquet:"resolved,snappy"`
	ResolvedAt     *time.Time `parquet:"resolved_at,optional,snappy"`
	ResolvedBy     *string    `parquet:"resolved_by,optional,snappy"`
	CreatedAt      time.Time  `parquet:"created_at,snappy"`
	UpdatedAt      time.Time  `parquet:"updated_at,snappy"`
}

// WriteActivityParquet writes activity rows to a Parquet file.
func WriteActivityParquet(data []ActivityRow, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteAlertsParquet writes alert rows to a Parquet file.
func WriteAlertsParquet(data []AlertRow, outputPath string) error {
	return writeRows(data, outputPath)
}

// writeRows infers the schema from T's struct tags.
func writeRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertActivityRecords converts store records to rows for Parquet export.
func ConvertActivityRecords(records []schema.ActivityRecord) []ActivityRow {
	result := make([]ActivityRow, len(records))
	for i, r := range records {
		result[i] = ActivityRow{
			StudentID:       r.StudentID,
			ProjectID:       r.ProjectID,
			Day:             r.Day,
			Commits:         int32(r.Commits),
			LinesAdded:      int32(r.LinesAdded),
			LinesDeleted:    int32(r.LinesDeleted),
			PullRequests:    int32(r.PullRequests),
			Reviews:         int32(r.Reviews),
			IssuesCreated:   int32(r.IssuesCreated),
			IssuesCompleted: int32(r.IssuesCompleted),
			StoryPoints:     int32(r.StoryPoints),
			Comments:        int32(r.Comments),
			TimeLoggedHours: r.TimeLoggedHours.String(),
		}
	}
	return result
}

// ConvertAlerts converts alerts to rows for Parquet export.
func ConvertAlerts(alerts []schema.InactiveAlert) []AlertRow {
	result := make([]AlertRow, len(alerts))
	for i, a := range alerts {
		result[i] = AlertRow{
			ID:             a.ID,
			TargetType:     string(a.TargetType),
			TargetID:       a.TargetID,
			ProjectID:      a.ProjectID,
			AlertType:      string(a.AlertType),
			Severity:       string(a.Severity),
			Message:        a.Message,
			ThresholdDays:  int32(a.ThresholdDays),
			InactiveDays:   int32(a.InactiveDays),
			LastActivityAt: a.LastActivityAt,
			Resolved:       a.Resolved,
			ResolvedAt:     a.ResolvedAt,
			ResolvedBy:     a.ResolvedBy,
			CreatedAt:      a.CreatedAt,
			UpdatedAt:      a.UpdatedAt,
		}
	}
	return result
}
