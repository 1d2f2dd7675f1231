package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// DashboardProvider returns project dashboards.
type DashboardProvider interface {
	GetProjectDashboard(ctx context.Context, projectID string) (*schema.DashboardSnapshot, error)
}

// AlertService lists, resolves, and scans for alerts.
type AlertService interface {
	ListOpenAlerts(ctx context.Context, filter schema.AlertFilter) ([]schema.InactiveAlert, error)
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy *string) error
	Run(ctx context.Context) (schema.AlertRunSummary, error)
}

// Syncer pulls new activity for a project.
type Syncer interface {
	Sync(ctx context.Context, projectID string) (schema.SyncResult, error)
}

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	svc Services
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// errorResult reports tool failures in the result instead of as protocol errors.
func errorResult(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, contract.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: not found: %v", action, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

func (h *toolHandler) handleGetProjectDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	snap, err := h.svc.Dashboards.GetProjectDashboard(ctx, projectID)
	if err != nil {
		return errorResult("dashboard", err), nil
	}
	return jsonResult(snap)
}

func (h *toolHandler) handleListOpenAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := schema.AlertFilter{
		ProjectID:  request.GetString("project_id", ""),
		TargetType: schema.AlertTargetType(request.GetString("target_type", "")),
	}
	if filter.TargetType != "" && filter.TargetType != schema.StudentTarget && filter.TargetType != schema.ProjectTarget {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target_type %q", filter.TargetType)), nil
	}
	alerts, err := h.svc.Alerts.ListOpenAlerts(ctx, filter)
	if err != nil {
		return errorResult("list alerts", err), nil
	}
	if alerts == nil {
		alerts = []schema.InactiveAlert{}
	}
	return jsonResult(alerts)
}

func (h *toolHandler) handleResolveAlert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alertID := request.GetInt("alert_id", 0)
	if alertID <= 0 {
		return mcp.NewToolResultError("alert_id must be a positive integer"), nil
	}
	var resolvedBy *string
	if by := request.GetString("resolved_by", ""); by != "" {
		resolvedBy = &by
	}
	if err := h.svc.Alerts.ResolveAlert(ctx, int64(alertID), resolvedBy); err != nil {
		return errorResult("resolve alert", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("alert %d resolved", alertID)), nil
}

func (h *toolHandler) handleRunAlertScan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.svc.Alerts.Run(ctx)
	if err != nil {
		return errorResult("alert scan", err), nil
	}
	return jsonResult(summary)
}

func (h *toolHandler) handleSyncProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	result, err := h.svc.Syncer.Sync(ctx, projectID)
	if err != nil {
		return errorResult("sync", err), nil
	}
	return jsonResult(result)
}
