package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

const alertSelect = `SELECT alert_id, target_type, target_id, project_id, alert_type, severity, message,
	threshold_days, inactive_days, last_activity_at, resolved, resolved_at, resolved_by, created_at, updated_at
	FROM inactive_alerts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (schema.InactiveAlert, error) {
	var a schema.InactiveAlert
	var targetType, alertType, severity string
	var lastActivity, resolvedAt sql.NullInt64
	var resolvedBy sql.NullString
	var resolved int
	var created, updated int64
	if err := row.Scan(
		&a.ID, &targetType, &a.TargetID, &a.ProjectID, &alertType, &severity, &a.Message,
		&a.ThresholdDays, &a.InactiveDays, &lastActivity, &resolved, &resolvedAt, &resolvedBy, &created, &updated,
	); err != nil {
		return a, err
	}
	var err error
	if a.TargetType, err = schema.ParseAlertTargetType(targetType); err != nil {
		return a, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
	}
	if a.Severity, err = schema.ParseSeverity(severity); err != nil {
		return a, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
	}
	a.AlertType = schema.AlertType(alertType)
	a.LastActivityAt = timeOrNil(lastActivity)
	a.Resolved = resolved != 0
	a.ResolvedAt = timeOrNil(resolvedAt)
	a.ResolvedBy = stringOrNil(resolvedBy)
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return a, nil
}

func (s *StoreImpl) queryAlerts(ctx context.Context, query string, args ...any) ([]schema.InactiveAlert, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []schema.InactiveAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetOpenAlert returns the unresolved alert for key, or nil when there is none.
// More than one unresolved alert for a key is reported as ErrIntegrity.
func (s *StoreImpl) GetOpenAlert(ctx context.Context, key schema.AlertKey) (*schema.InactiveAlert, error) {
	alerts, err := s.queryAlerts(ctx,
		alertSelect+" WHERE target_type = ? AND target_id = ? AND project_id = ? AND alert_type = ? AND resolved = 0",
		string(key.TargetType), key.TargetID, key.ProjectID, string(key.AlertType),
	)
	if err != nil {
		return nil, err
	}
	switch len(alerts) {
	case 0:
		return nil, nil
	case 1:
		return &alerts[0], nil
	default:
		s.log.WithField("target", key.TargetID).WithField("count", len(alerts)).Error("multiple unresolved alerts for one target")
		return nil, fmt.Errorf("%w: %d unresolved %s alerts for %s %s", contract.ErrIntegrity, len(alerts), key.AlertType, key.TargetType, key.TargetID)
	}
}

// CreateAlert inserts an unresolved alert and sets its ID and timestamps.
func (s *StoreImpl) CreateAlert(ctx context.Context, alert *schema.InactiveAlert) error {
	now := s.now().UTC().Truncate(time.Second)
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now
	alert.Resolved = false
	alert.ResolvedAt = nil
	alert.ResolvedBy = nil

	query := `INSERT INTO inactive_alerts (target_type, target_id, project_id, alert_type, severity, message,
		threshold_days, inactive_days, last_activity_at, resolved, open_slot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`
	args := []any{
		string(alert.TargetType), alert.TargetID, alert.ProjectID, string(alert.AlertType), string(alert.Severity), alert.Message,
		alert.ThresholdDays, alert.InactiveDays, unixOrNull(alert.LastActivityAt), alert.CreatedAt.Unix(), alert.UpdatedAt.Unix(),
	}

	var err error
	if s.backend == schema.PostgreSQLBackend {
		err = s.db.QueryRowContext(ctx, s.bind(query+" RETURNING alert_id"), args...).Scan(&alert.ID)
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			alert.ID, err = res.LastInsertId()
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: unresolved %s alert already exists for %s %s", contract.ErrIntegrity, alert.AlertType, alert.TargetType, alert.TargetID)
		}
		return fmt.Errorf("failed to create alert for %s %s: %w", alert.TargetType, alert.TargetID, err)
	}
	return nil
}

// UpdateOpenAlert refreshes severity, message and staleness of an unresolved alert.
func (s *StoreImpl) UpdateOpenAlert(ctx context.Context, alert *schema.InactiveAlert) error {
	alert.UpdatedAt = s.now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, s.bind(`UPDATE inactive_alerts
		SET severity = ?, message = ?, threshold_days = ?, inactive_days = ?, last_activity_at = ?, updated_at = ?
		WHERE alert_id = ? AND resolved = 0`),
		string(alert.Severity), alert.Message, alert.ThresholdDays, alert.InactiveDays,
		unixOrNull(alert.LastActivityAt), alert.UpdatedAt.Unix(), alert.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert %d: %w", alert.ID, err)
	}
	return nil
}

// ResolveAlert resolves an alert and releases its open slot. It reports false
// when the alert was already resolved and ErrNotFound when it does not exist.
func (s *StoreImpl) ResolveAlert(ctx context.Context, alertID int64, at time.Time, resolvedBy *string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE inactive_alerts
		SET resolved = 1, open_slot = NULL, resolved_at = ?, resolved_by = ?, updated_at = ?
		WHERE alert_id = ? AND resolved = 0`),
		at.Unix(), stringPtrOrNull(resolvedBy), at.Unix(), alertID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert %d: %w", alertID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read resolve result for %d: %w", alertID, err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetAlert(ctx, alertID); err != nil {
		return false, err
	}
	return false, nil
}

// GetAlert returns one alert or ErrNotFound.
func (s *StoreImpl) GetAlert(ctx context.Context, alertID int64) (schema.InactiveAlert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, s.bind(alertSelect+" WHERE alert_id = ?"), alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("alert %d: %w", alertID, contract.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	return a, nil
}

// ListOpenAlerts returns unresolved alerts matching filter, newest first.
func (s *StoreImpl) ListOpenAlerts(ctx context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error) {
	where := []string{"resolved = 0"}
	var args []any
	if filter.TargetType != "" {
		where = append(where, "target_type = ?")
		args = append(args, string(filter.TargetType))
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	return s.queryAlerts(ctx, alertSelect+" WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at DESC, alert_id DESC", args...)
}

// ListAlerts returns every alert, resolved or not, in creation order.
func (s *StoreImpl) ListAlerts(ctx context.Context) ([]schema.InactiveAlert, error) {
	return s.queryAlerts(ctx, alertSelect+" ORDER BY alert_id")
}
