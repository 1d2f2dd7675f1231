package iostore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huangsam/teampulse/schema"
)

// storeTables lists the tables reported by GetStatus.
var storeTables = []string{
	"projects", "project_integrations", "team_members", "member_identities",
	"activity_records", "activity_events", "jira_issues", "sync_watermarks",
	"inactive_alerts", "sync_jobs",
}

// GetStatus returns status information about the store.
func (s *StoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:        string(s.backend),
		Connected:      s.db != nil,
		TableRowCounts: make(map[string]int64),
	}
	if s.db == nil {
		return status, nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		status.Connected = false
		return status, nil
	}

	version, dirty, err := s.MigrationVersion(ctx)
	if err != nil {
		return status, err
	}
	status.SchemaVersion = version
	status.Dirty = dirty

	for _, table := range storeTables {
		if err := validateTableName(table); err != nil {
			return status, err
		}
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend))
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to count rows in %s: %w", table, err)
		}
		status.TableRowCounts[table] = count
	}
	status.Projects = int(status.TableRowCounts["projects"])
	status.ActivityRecords = int(status.TableRowCounts["activity_records"])
	status.LedgeredEvents = int(status.TableRowCounts["activity_events"])

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inactive_alerts WHERE resolved = 0").Scan(&status.OpenAlerts); err != nil {
		return status, fmt.Errorf("failed to count open alerts: %w", err)
	}

	var lastDay sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(activity_date) FROM activity_records").Scan(&lastDay); err != nil {
		return status, fmt.Errorf("failed to read last activity day: %w", err)
	}
	status.LastActivityDay = lastDay.String
	return status, nil
}
