package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/iostore"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store AlertEngineStore, clock *fakeClock) *AlertEngine {
	return NewAlertEngine(store, AlertOptions{ThresholdDays: 14, Workers: 2, Now: clock.Now})
}

func studentAlerts(t *testing.T, store *iostore.StoreImpl, studentID string) (open, all []schema.InactiveAlert) {
	t.Helper()
	alerts, err := store.ListAlerts(context.Background())
	require.NoError(t, err)
	for _, a := range alerts {
		if a.TargetType != schema.StudentTarget || a.TargetID != studentID {
			continue
		}
		all = append(all, a)
		if !a.Resolved {
			open = append(open, a)
		}
	}
	return open, all
}

func TestNeverActiveStudentOpensThenResolves(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0))
	recordCommit(t, store, "p1", "s1", "sha-ada", testNow.Add(-time.Hour))
	clock := newFakeClock()
	metrics := telemetry.New()
	engine := NewAlertEngine(store, AlertOptions{ThresholdDays: 14, Metrics: metrics, Now: clock.Now})

	summary, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProjectsScanned)
	assert.Equal(t, 3, summary.TargetsScanned)
	assert.Equal(t, 1, summary.Opened)
	assert.Empty(t, summary.Failures)

	open, _ := studentAlerts(t, store, "s2")
	require.Len(t, open, 1)
	alert := open[0]
	assert.Equal(t, "p1", alert.ProjectID)
	assert.Equal(t, schema.WarningSeverity, alert.Severity)
	assert.Equal(t, 14, alert.ThresholdDays)
	assert.Equal(t, schema.NoActivitySentinel, alert.InactiveDays)
	assert.Nil(t, alert.LastActivityAt)
	assert.Contains(t, alert.Message, "Bob")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OpenAlerts))

	recordCommit(t, store, "p1", "s2", "sha-bob", testNow)
	clock.Advance(time.Hour)

	summary, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resolved)

	open, all := studentAlerts(t, store, "s2")
	assert.Empty(t, open)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
	assert.NotNil(t, all[0].ResolvedAt)
	assert.Nil(t, all[0].ResolvedBy)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.OpenAlerts))
}

func TestYoungTargetsAreNotAlerted(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, 0, -5))

	summary, err := newTestEngine(store, newFakeClock()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Opened)

	alerts, err := store.ListAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestOpenAlertIsUpdatedInPlace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0))
	recordCommit(t, store, "p1", "s1", "sha-ada", testNow.Add(-time.Hour))
	recordCommit(t, store, "p1", "s2", "sha-bob", testNow.AddDate(0, 0, -20))
	clock := newFakeClock()
	engine := newTestEngine(store, clock)

	summary, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Opened)

	// Same day again: nothing changed.
	summary, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Opened)
	assert.Zero(t, summary.Updated)

	clock.Advance(24 * time.Hour)
	summary, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Opened)
	assert.Equal(t, 1, summary.Updated)

	open, all := studentAlerts(t, store, "s2")
	require.Len(t, all, 1)
	require.Len(t, open, 1)
	assert.Equal(t, 21, open[0].InactiveDays)
	require.NotNil(t, open[0].LastActivityAt)
	assert.Equal(t, "2025-02-18", schema.DayOf(*open[0].LastActivityAt))
}

func TestManuallyResolvedAlertReopens(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0))
	recordCommit(t, store, "p1", "s1", "sha-ada", testNow.Add(-time.Hour))
	clock := newFakeClock()
	engine := newTestEngine(store, clock)

	_, err := engine.Run(ctx)
	require.NoError(t, err)
	open, _ := studentAlerts(t, store, "s2")
	require.Len(t, open, 1)

	lecturer := "lecturer-7"
	require.NoError(t, engine.ResolveAlert(ctx, open[0].ID, &lecturer))
	// Resolving twice is a no-op.
	require.NoError(t, engine.ResolveAlert(ctx, open[0].ID, nil))

	resolved, err := store.GetAlert(ctx, open[0].ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, lecturer, *resolved.ResolvedBy)

	for range 3 {
		clock.Advance(time.Hour)
		_, err = engine.Run(ctx)
		require.NoError(t, err)
	}

	open, all := studentAlerts(t, store, "s2")
	assert.Len(t, open, 1)
	assert.Len(t, all, 2)
	assert.NotEqual(t, resolved.ID, open[0].ID)
}

func TestResolveUnknownAlert(t *testing.T) {
	engine := newTestEngine(newTestStore(t), newFakeClock())
	err := engine.ResolveAlert(context.Background(), 42, nil)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestDepartedMemberAlertIsResolved(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0))
	recordCommit(t, store, "p1", "s1", "sha-ada", testNow.Add(-time.Hour))
	engine := newTestEngine(store, newFakeClock())

	_, err := engine.Run(ctx)
	require.NoError(t, err)

	departed := bob
	departed.Status = schema.LeftParticipation
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0), ada, departed)

	summary, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resolved)
	open, _ := studentAlerts(t, store, "s2")
	assert.Empty(t, open)
}

func TestSilentProjectIsAlerted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedProject(t, store, "p1", testNow.AddDate(0, -2, 0))
	recordCommit(t, store, "p1", "s1", "sha-ada", testNow.AddDate(0, 0, -30))
	engine := newTestEngine(store, newFakeClock())

	_, err := engine.Run(ctx)
	require.NoError(t, err)

	alerts, err := engine.ListOpenAlerts(ctx, schema.AlertFilter{TargetType: schema.ProjectTarget})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "p1", alerts[0].TargetID)
	assert.Equal(t, 30, alerts[0].InactiveDays)

	students, err := engine.ListOpenAlerts(ctx, schema.AlertFilter{TargetType: schema.StudentTarget, ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestRunCollectsProjectFailures(t *testing.T) {
	store := &iostore.MockStore{}
	store.On("ListProjects", mock.Anything).Return([]schema.Project{{ID: "bad", CreatedAt: testNow}}, nil)
	store.On("LastProjectActivity", mock.Anything, "bad").Return(nil, errors.New("connection reset"))
	store.On("ListOpenAlerts", mock.Anything, schema.AlertFilter{}).Return([]schema.InactiveAlert(nil), nil)

	summary, err := newTestEngine(store, newFakeClock()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProjectsScanned)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0], "bad: connection reset")
	store.AssertExpectations(t)
}

func TestRunFailsWithoutProjects(t *testing.T) {
	store := &iostore.MockStore{}
	store.On("ListProjects", mock.Anything).Return(nil, errors.New("no such table: projects"))

	_, err := newTestEngine(store, newFakeClock()).Run(context.Background())
	assert.Error(t, err)
}

func TestEvaluateJoinsConcurrentlyOpenedAlert(t *testing.T) {
	key := alertKey(schema.StudentTarget, "s2", "p1")
	last := testNow.AddDate(0, 0, -20)
	existing := &schema.InactiveAlert{ID: 9, TargetType: key.TargetType, TargetID: key.TargetID, ProjectID: key.ProjectID,
		AlertType: key.AlertType, InactiveDays: 19, ThresholdDays: 14}

	store := &iostore.MockStore{}
	store.On("GetOpenAlert", mock.Anything, key).Return(nil, nil).Once()
	store.On("CreateAlert", mock.Anything, mock.Anything).Return(contract.ErrIntegrity).Once()
	store.On("GetOpenAlert", mock.Anything, key).Return(existing, nil).Once()
	store.On("UpdateOpenAlert", mock.Anything, mock.MatchedBy(func(a *schema.InactiveAlert) bool {
		return a.ID == 9 && a.InactiveDays == 20
	})).Return(nil).Once()

	engine := newTestEngine(store, newFakeClock())
	transition, err := engine.Evaluate(context.Background(), schema.AlertTarget{
		Key: key, Label: "Bob", ExistedSince: testNow.AddDate(0, -2, 0), LastActivity: &last,
	})
	require.NoError(t, err)
	assert.Equal(t, TransitionUpdated, transition)
	store.AssertExpectations(t)
}

func TestStaleness(t *testing.T) {
	engine := newTestEngine(&iostore.MockStore{}, newFakeClock())
	recent := testNow.AddDate(0, 0, -14)
	old := testNow.AddDate(0, 0, -15)

	tests := []struct {
		name      string
		target    schema.AlertTarget
		wantDays  int
		wantStale bool
	}{
		{"at threshold", schema.AlertTarget{LastActivity: &recent}, 14, false},
		{"past threshold", schema.AlertTarget{LastActivity: &old}, 15, true},
		{"never active and young", schema.AlertTarget{ExistedSince: recent}, 14, false},
		{"never active and old", schema.AlertTarget{ExistedSince: old}, schema.NoActivitySentinel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, stale := engine.staleness(tt.target, testNow)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.wantStale, stale)
		})
	}
}
