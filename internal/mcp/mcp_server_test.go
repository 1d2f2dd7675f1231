package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	mcp_internal "github.com/huangsam/teampulse/internal/mcp"
	"github.com/huangsam/teampulse/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboards struct{}

func (fakeDashboards) GetProjectDashboard(_ context.Context, projectID string) (*schema.DashboardSnapshot, error) {
	if projectID != "p1" {
		return nil, fmt.Errorf("project %s: %w", projectID, contract.ErrNotFound)
	}
	return &schema.DashboardSnapshot{ProjectID: "p1", ProjectName: "Capstone", TeamSize: 3}, nil
}

type fakeAlerts struct {
	filter     schema.AlertFilter
	resolvedID int64
	resolvedBy *string
}

func (f *fakeAlerts) ListOpenAlerts(_ context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error) {
	f.filter = filter
	if filter.ProjectID == "empty" {
		return nil, nil
	}
	return []schema.InactiveAlert{{ID: 4, TargetType: schema.StudentTarget, TargetID: "s2", ProjectID: "p1", InactiveDays: 20}}, nil
}

func (f *fakeAlerts) ResolveAlert(_ context.Context, alertID int64, resolvedBy *string) error {
	if alertID == 99 {
		return fmt.Errorf("alert 99: %w", contract.ErrNotFound)
	}
	f.resolvedID, f.resolvedBy = alertID, resolvedBy
	return nil
}

func (f *fakeAlerts) Run(context.Context) (schema.AlertRunSummary, error) {
	return schema.AlertRunSummary{ProjectsScanned: 2, Opened: 1}, nil
}

type fakeSyncer struct{}

func (fakeSyncer) Sync(_ context.Context, projectID string) (schema.SyncResult, error) {
	if projectID == "flaky" {
		return schema.SyncResult{}, contract.ErrTransientFetch
	}
	return schema.SyncResult{ProjectID: projectID, EventsProcessed: 5, NewWatermark: map[schema.Source]schema.Watermark{
		schema.GitHubSource: {At: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
	}}, nil
}

func call(t *testing.T, svc mcp_internal.Services, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(svc)
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "tool failures are reported in the result, not as protocol errors")
	require.NotEmpty(t, res.Content)
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestGetProjectDashboard(t *testing.T) {
	svc := mcp_internal.Services{Dashboards: fakeDashboards{}}

	res := call(t, svc, "get_project_dashboard", map[string]any{"project_id": "p1"})
	require.False(t, res.IsError)
	var snap schema.DashboardSnapshot
	require.NoError(t, json.Unmarshal([]byte(text(res)), &snap))
	assert.Equal(t, "Capstone", snap.ProjectName)

	res = call(t, svc, "get_project_dashboard", map[string]any{"project_id": "nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "not found")

	res = call(t, svc, "get_project_dashboard", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "project_id is required")
}

func TestAlertTools(t *testing.T) {
	alerts := &fakeAlerts{}
	svc := mcp_internal.Services{Alerts: alerts}

	t.Run("list with filter", func(t *testing.T) {
		res := call(t, svc, "list_open_alerts", map[string]any{"project_id": "p1", "target_type": "STUDENT"})
		require.False(t, res.IsError)
		assert.Equal(t, schema.AlertFilter{ProjectID: "p1", TargetType: schema.StudentTarget}, alerts.filter)
		var got []schema.InactiveAlert
		require.NoError(t, json.Unmarshal([]byte(text(res)), &got))
		require.Len(t, got, 1)
		assert.Equal(t, int64(4), got[0].ID)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		res := call(t, svc, "list_open_alerts", map[string]any{"project_id": "empty"})
		assert.Equal(t, "[]", text(res))
	})

	t.Run("invalid target type", func(t *testing.T) {
		res := call(t, svc, "list_open_alerts", map[string]any{"target_type": "TEACHER"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid target_type")
	})

	t.Run("resolve", func(t *testing.T) {
		res := call(t, svc, "resolve_alert", map[string]any{"alert_id": 4.0, "resolved_by": "mentor-1"})
		require.False(t, res.IsError)
		assert.Equal(t, "alert 4 resolved", text(res))
		assert.Equal(t, int64(4), alerts.resolvedID)
		require.NotNil(t, alerts.resolvedBy)
		assert.Equal(t, "mentor-1", *alerts.resolvedBy)
	})

	t.Run("resolve unknown", func(t *testing.T) {
		res := call(t, svc, "resolve_alert", map[string]any{"alert_id": 99.0})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "not found")
	})

	t.Run("resolve missing id", func(t *testing.T) {
		res := call(t, svc, "resolve_alert", map[string]any{})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "alert_id must be a positive integer")
	})

	t.Run("scan", func(t *testing.T) {
		res := call(t, svc, "run_alert_scan", nil)
		require.False(t, res.IsError)
		var summary schema.AlertRunSummary
		require.NoError(t, json.Unmarshal([]byte(text(res)), &summary))
		assert.Equal(t, 2, summary.ProjectsScanned)
		assert.Equal(t, 1, summary.Opened)
	})
}

func TestSyncProject(t *testing.T) {
	svc := mcp_internal.Services{Syncer: fakeSyncer{}}

	res := call(t, svc, "sync_project", map[string]any{"project_id": "p1"})
	require.False(t, res.IsError)
	var result schema.SyncResult
	require.NoError(t, json.Unmarshal([]byte(text(res)), &result))
	assert.Equal(t, 5, result.EventsProcessed)

	res = call(t, svc, "sync_project", map[string]any{"project_id": "flaky"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "sync failed")
}

func TestToolsHiddenWithoutServices(t *testing.T) {
	s := mcp_internal.NewMCPServer(mcp_internal.Services{})
	for _, name := range []string{"get_project_dashboard", "list_open_alerts", "resolve_alert", "run_alert_scan", "sync_project"} {
		assert.Nil(t, s.GetTool(name), name)
	}
}
