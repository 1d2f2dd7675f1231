package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// Alert transitions reported by Evaluate.
const (
	TransitionNone     = ""
	TransitionOpened   = "opened"
	TransitionUpdated  = "updated"
	TransitionResolved = "resolved"
)

// AlertEngineStore is what the inactivity alert engine reads and writes.
type AlertEngineStore interface {
	contract.AlertStore
	contract.RosterLookup
	ListProjects(ctx context.Context) ([]schema.Project, error)
	LastStudentActivity(ctx context.Context, projectID string) (map[string]time.Time, error)
	LastProjectActivity(ctx context.Context, projectID string) (*time.Time, error)
}

// AlertOptions tune an AlertEngine.
type AlertOptions struct {
	ThresholdDays int
	Workers       int
	Logger        logrus.FieldLogger
	Metrics       *telemetry.Metrics
	Now           func() time.Time
}

// AlertEngine opens and resolves inactivity alerts for projects and students.
type AlertEngine struct {
	store     AlertEngineStore
	threshold int
	workers   int
	log       logrus.FieldLogger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewAlertEngine creates an AlertEngine.
func NewAlertEngine(store AlertEngineStore, opts AlertOptions) *AlertEngine {
	if opts.ThresholdDays <= 0 {
		opts.ThresholdDays = contract.DefaultAlertThresholdDays
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AlertEngine{
		store:     store,
		threshold: opts.ThresholdDays,
		workers:   opts.Workers,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

// ThresholdDays returns the configured threshold.
func (e *AlertEngine) ThresholdDays() int {
	return e.threshold
}

// Run scans every project once. A failing project is recorded in the
// summary and does not stop the scan; only failing to list projects is fatal.
func (e *AlertEngine) Run(ctx context.Context) (schema.AlertRunSummary, error) {
	var summary schema.AlertRunSummary
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list projects: %w", err)
	}

	projCh := make(chan schema.Project, len(projects))
	for _, p := range projects {
		projCh <- p
	}
	close(projCh)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for range min(e.workers, len(projects)) {
		wg.Go(func() {
			for p := range projCh {
				part, err := e.ScanProject(ctx, p)
				mu.Lock()
				summary.ProjectsScanned++
				summary.TargetsScanned += part.TargetsScanned
				summary.Opened += part.Opened
				summary.Updated += part.Updated
				summary.Resolved += part.Resolved
				if err != nil {
					summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", p.ID, err))
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if open, err := e.store.ListOpenAlerts(ctx, schema.AlertFilter{}); err == nil {
		e.metrics.SetOpenAlerts(len(open))
	}

	e.log.WithFields(logrus.Fields{
		"projects": summary.ProjectsScanned,
		"targets":  summary.TargetsScanned,
		"opened":   summary.Opened,
		"updated":  summary.Updated,
		"resolved": summary.Resolved,
		"failures": len(summary.Failures),
	}).Info("alert scan finished")
	return summary, nil
}

// ScanProject evaluates the project target and one target per active member.
// Open student alerts of members who are no longer active are resolved.
func (e *AlertEngine) ScanProject(ctx context.Context, project schema.Project) (schema.AlertRunSummary, error) {
	var summary schema.AlertRunSummary
	targets, err := e.targets(ctx, project)
	if err != nil {
		return summary, err
	}

	var errs []error
	active := make(map[string]bool, len(targets))
	for _, target := range targets {
		if target.Key.TargetType == schema.StudentTarget {
			active[target.Key.TargetID] = true
		}
		summary.TargetsScanned++
		transition, err := e.Evaluate(ctx, target)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		countTransition(&summary, transition)
	}

	open, err := e.store.ListOpenAlerts(ctx, schema.AlertFilter{TargetType: schema.StudentTarget, ProjectID: project.ID})
	if err != nil {
		errs = append(errs, err)
	}
	for _, alert := range open {
		if active[alert.TargetID] {
			continue
		}
		if _, err := e.store.ResolveAlert(ctx, alert.ID, contract.NormalizeTime(e.now()), nil); err != nil {
			errs = append(errs, err)
			continue
		}
		e.log.WithFields(e.alertFields(alert.Key())).Info("resolved alert for departed member")
		e.metrics.AlertTransition(TransitionResolved)
		summary.Resolved++
	}
	return summary, errors.Join(errs...)
}

func (e *AlertEngine) targets(ctx context.Context, project schema.Project) ([]schema.AlertTarget, error) {
	lastProject, err := e.store.LastProjectActivity(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.GetActiveTeamMembers(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	lastStudent, err := e.store.LastStudentActivity(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	targets := make([]schema.AlertTarget, 0, len(members)+1)
	targets = append(targets, schema.AlertTarget{
		Key:          alertKey(schema.ProjectTarget, project.ID, project.ID),
		Label:        project.Name,
		ExistedSince: project.CreatedAt,
		LastActivity: lastProject,
	})
	for _, m := range members {
		t := schema.AlertTarget{
			Key:          alertKey(schema.StudentTarget, m.StudentID, project.ID),
			Label:        m.Name,
			ExistedSince: m.JoinedAt,
		}
		if last, ok := lastStudent[m.StudentID]; ok {
			t.LastActivity = &last
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func alertKey(targetType schema.AlertTargetType, targetID, projectID string) schema.AlertKey {
	return schema.AlertKey{TargetType: targetType, TargetID: targetID, ProjectID: projectID, AlertType: schema.InactivityAlert}
}

// Evaluate moves one target through no-alert, OPEN and RESOLVED and reports the transition taken.
func (e *AlertEngine) Evaluate(ctx context.Context, target schema.AlertTarget) (string, error) {
	now := contract.NormalizeTime(e.now())
	inactiveDays, stale := e.staleness(target, now)

	open, err := e.store.GetOpenAlert(ctx, target.Key)
	if err != nil {
		e.log.WithError(err).WithFields(e.alertFields(target.Key)).Error("failed to read open alert")
		return TransitionNone, err
	}

	switch {
	case stale && open == nil:
		alert := e.newAlert(target, inactiveDays)
		err := e.store.CreateAlert(ctx, alert)
		if errors.Is(err, contract.ErrIntegrity) {
			// Another engine opened it first.
			if existing, getErr := e.store.GetOpenAlert(ctx, target.Key); getErr == nil && existing != nil {
				return e.refresh(ctx, existing, target, inactiveDays)
			}
		}
		if err != nil {
			e.log.WithError(err).WithFields(e.alertFields(target.Key)).Error("failed to open alert")
			return TransitionNone, err
		}
		e.log.WithFields(e.alertFields(target.Key)).WithField("inactive_days", inactiveDays).Info("opened inactivity alert")
		e.metrics.AlertTransition(TransitionOpened)
		return TransitionOpened, nil

	case stale:
		return e.refresh(ctx, open, target, inactiveDays)

	case open != nil:
		if _, err := e.store.ResolveAlert(ctx, open.ID, now, nil); err != nil {
			e.log.WithError(err).WithFields(e.alertFields(target.Key)).Error("failed to resolve alert")
			return TransitionNone, err
		}
		e.log.WithFields(e.alertFields(target.Key)).Info("resolved inactivity alert")
		e.metrics.AlertTransition(TransitionResolved)
		return TransitionResolved, nil
	}
	return TransitionNone, nil
}

// refresh updates an open alert in place when its staleness changed.
func (e *AlertEngine) refresh(ctx context.Context, open *schema.InactiveAlert, target schema.AlertTarget, inactiveDays int) (string, error) {
	if open.InactiveDays == inactiveDays && open.ThresholdDays == e.threshold && sameTime(open.LastActivityAt, target.LastActivity) {
		return TransitionNone, nil
	}
	open.InactiveDays = inactiveDays
	open.ThresholdDays = e.threshold
	open.LastActivityAt = normalizedPtr(target.LastActivity)
	open.Message = e.message(target, inactiveDays)
	if err := e.store.UpdateOpenAlert(ctx, open); err != nil {
		e.log.WithError(err).WithFields(e.alertFields(target.Key)).Error("failed to update alert")
		return TransitionNone, err
	}
	e.metrics.AlertTransition(TransitionUpdated)
	return TransitionUpdated, nil
}

// staleness returns the inactive days of a target and whether it is past the threshold.
// A target that was never active reports the no-activity sentinel once it has
// existed for longer than the threshold.
func (e *AlertEngine) staleness(target schema.AlertTarget, now time.Time) (int, bool) {
	if target.LastActivity == nil {
		existed := contract.CalculateDaysBetween(target.ExistedSince, now)
		if existed > e.threshold {
			return schema.NoActivitySentinel, true
		}
		return existed, false
	}
	days := contract.CalculateDaysBetween(*target.LastActivity, now)
	return days, days > e.threshold
}

func (e *AlertEngine) newAlert(target schema.AlertTarget, inactiveDays int) *schema.InactiveAlert {
	return &schema.InactiveAlert{
		TargetType:     target.Key.TargetType,
		TargetID:       target.Key.TargetID,
		ProjectID:      target.Key.ProjectID,
		AlertType:      target.Key.AlertType,
		Severity:       schema.WarningSeverity,
		Message:        e.message(target, inactiveDays),
		ThresholdDays:  e.threshold,
		InactiveDays:   inactiveDays,
		LastActivityAt: normalizedPtr(target.LastActivity),
	}
}

func (e *AlertEngine) message(target schema.AlertTarget, inactiveDays int) string {
	noun := "Student"
	if target.Key.TargetType == schema.ProjectTarget {
		noun = "Project"
	}
	if target.LastActivity == nil {
		return fmt.Sprintf("%s %s has no recorded activity (threshold %d days)", noun, target.Label, e.threshold)
	}
	return fmt.Sprintf("%s %s has been inactive for %d days since %s (threshold %d days)",
		noun, target.Label, inactiveDays, target.LastActivity.UTC().Format(schema.DayLayout), e.threshold)
}

func (e *AlertEngine) alertFields(key schema.AlertKey) logrus.Fields {
	return logrus.Fields{"target_type": key.TargetType, "target": key.TargetID, "project": key.ProjectID}
}

// ListOpenAlerts returns unresolved alerts matching the filter.
func (e *AlertEngine) ListOpenAlerts(ctx context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error) {
	return e.store.ListOpenAlerts(ctx, filter)
}

// ResolveAlert resolves an alert by hand. An unknown alert is ErrNotFound;
// an already resolved one is left untouched.
func (e *AlertEngine) ResolveAlert(ctx context.Context, alertID int64, resolvedBy *string) error {
	changed, err := e.store.ResolveAlert(ctx, alertID, contract.NormalizeTime(e.now()), resolvedBy)
	if err != nil {
		return err
	}
	if changed {
		e.metrics.AlertTransition(TransitionResolved)
		e.log.WithField("alert", alertID).Info("alert resolved manually")
	}
	return nil
}

func countTransition(summary *schema.AlertRunSummary, transition string) {
	switch transition {
	case TransitionOpened:
		summary.Opened++
	case TransitionUpdated:
		summary.Updated++
	case TransitionResolved:
		summary.Resolved++
	}
}

func normalizedPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return contract.TimePtr(*t)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}
