package iostore

import (
	"context"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.Store = &MockStore{} // Compile-time check

// GetIntegration implements the Store interface.
func (m *MockStore) GetIntegration(ctx context.Context, projectID string) (schema.ProjectIntegration, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(schema.ProjectIntegration), args.Error(1)
}

// GetActiveTeamMembers implements the Store interface.
func (m *MockStore) GetActiveTeamMembers(ctx context.Context, projectID string) ([]schema.TeamMember, error) {
	args := m.Called(ctx, projectID)
	members, _ := args.Get(0).([]schema.TeamMember)
	return members, args.Error(1)
}

// GetProject implements the Store interface.
func (m *MockStore) GetProject(ctx context.Context, projectID string) (schema.Project, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(schema.Project), args.Error(1)
}

// ListProjects implements the Store interface.
func (m *MockStore) ListProjects(ctx context.Context) ([]schema.Project, error) {
	args := m.Called(ctx)
	projects, _ := args.Get(0).([]schema.Project)
	return projects, args.Error(1)
}

// UpsertProject implements the Store interface.
func (m *MockStore) UpsertProject(ctx context.Context, p schema.Project, integ schema.ProjectIntegration, members []schema.TeamMember) error {
	return m.Called(ctx, p, integ, members).Error(0)
}

// GetWatermark implements the Store interface.
func (m *MockStore) GetWatermark(ctx context.Context, projectID string, src schema.Source) (schema.Watermark, error) {
	args := m.Called(ctx, projectID, src)
	return args.Get(0).(schema.Watermark), args.Error(1)
}

// ApplyBatch implements the Store interface.
func (m *MockStore) ApplyBatch(ctx context.Context, batch schema.MergeBatch) (schema.MergeOutcome, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(schema.MergeOutcome), args.Error(1)
}

// ListActivity implements the Store interface.
func (m *MockStore) ListActivity(ctx context.Context, projectID, fromDay, toDay string) ([]schema.ActivityRecord, error) {
	args := m.Called(ctx, projectID, fromDay, toDay)
	records, _ := args.Get(0).([]schema.ActivityRecord)
	return records, args.Error(1)
}

// MemberTotals implements the Store interface.
func (m *MockStore) MemberTotals(ctx context.Context, projectID, fromDay string) ([]schema.ActivityTotals, error) {
	args := m.Called(ctx, projectID, fromDay)
	totals, _ := args.Get(0).([]schema.ActivityTotals)
	return totals, args.Error(1)
}

// LastStudentActivity implements the Store interface.
func (m *MockStore) LastStudentActivity(ctx context.Context, projectID string) (map[string]time.Time, error) {
	args := m.Called(ctx, projectID)
	last, _ := args.Get(0).(map[string]time.Time)
	return last, args.Error(1)
}

// LastProjectActivity implements the Store interface.
func (m *MockStore) LastProjectActivity(ctx context.Context, projectID string) (*time.Time, error) {
	args := m.Called(ctx, projectID)
	last, _ := args.Get(0).(*time.Time)
	return last, args.Error(1)
}

// CommitStats implements the Store interface.
func (m *MockStore) CommitStats(ctx context.Context, projectID string) (schema.CommitStats, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(schema.CommitStats), args.Error(1)
}

// IssueStats implements the Store interface.
func (m *MockStore) IssueStats(ctx context.Context, projectID string) (schema.IssueStats, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(schema.IssueStats), args.Error(1)
}

// GetOpenAlert implements the Store interface.
func (m *MockStore) GetOpenAlert(ctx context.Context, key schema.AlertKey) (*schema.InactiveAlert, error) {
	args := m.Called(ctx, key)
	alert, _ := args.Get(0).(*schema.InactiveAlert)
	return alert, args.Error(1)
}

// CreateAlert implements the Store interface.
func (m *MockStore) CreateAlert(ctx context.Context, alert *schema.InactiveAlert) error {
	return m.Called(ctx, alert).Error(0)
}

// UpdateOpenAlert implements the Store interface.
func (m *MockStore) UpdateOpenAlert(ctx context.Context, alert *schema.InactiveAlert) error {
	return m.Called(ctx, alert).Error(0)
}

// ResolveAlert implements the Store interface.
func (m *MockStore) ResolveAlert(ctx context.Context, alertID int64, at time.Time, resolvedBy *string) (bool, error) {
	args := m.Called(ctx, alertID, at, resolvedBy)
	return args.Bool(0), args.Error(1)
}

// GetAlert implements the Store interface.
func (m *MockStore) GetAlert(ctx context.Context, alertID int64) (schema.InactiveAlert, error) {
	args := m.Called(ctx, alertID)
	return args.Get(0).(schema.InactiveAlert), args.Error(1)
}

// ListOpenAlerts implements the Store interface.
func (m *MockStore) ListOpenAlerts(ctx context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error) {
	args := m.Called(ctx, filter)
	alerts, _ := args.Get(0).([]schema.InactiveAlert)
	return alerts, args.Error(1)
}

// ListAlerts implements the Store interface.
func (m *MockStore) ListAlerts(ctx context.Context) ([]schema.InactiveAlert, error) {
	args := m.Called(ctx)
	alerts, _ := args.Get(0).([]schema.InactiveAlert)
	return alerts, args.Error(1)
}

// CreateJob implements the Store interface.
func (m *MockStore) CreateJob(ctx context.Context, job schema.SyncJob) error {
	return m.Called(ctx, job).Error(0)
}

// UpdateJob implements the Store interface.
func (m *MockStore) UpdateJob(ctx context.Context, job schema.SyncJob) error {
	return m.Called(ctx, job).Error(0)
}

// GetJob implements the Store interface.
func (m *MockStore) GetJob(ctx context.Context, jobID string) (schema.SyncJob, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(schema.SyncJob), args.Error(1)
}

// ListJobs implements the Store interface.
func (m *MockStore) ListJobs(ctx context.Context, limit int) ([]schema.SyncJob, error) {
	args := m.Called(ctx, limit)
	jobs, _ := args.Get(0).([]schema.SyncJob)
	return jobs, args.Error(1)
}

// GetStatus implements the Store interface.
func (m *MockStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the Store interface.
func (m *MockStore) Close() error {
	return m.Called().Error(0)
}
