// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Services are the operations exposed as MCP tools. A nil field hides its tools.
type Services struct {
	Dashboards DashboardProvider
	Alerts     AlertService
	Syncer     Syncer
	Version    string
}

// NewMCPServer initializes and configures the TeamPulse MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(svc Services) *server.MCPServer {
	s := server.NewMCPServer(
		"TeamPulse Activity Server",
		svc.Version,
		server.WithLogging(),
	)

	h := &toolHandler{svc: svc}

	if svc.Dashboards != nil {
		s.AddTool(mcp.NewTool("get_project_dashboard",
			mcp.WithDescription("Get team activity metrics for a project: GitHub and Jira rollups and per-member contributions."),
			mcp.WithString("project_id", mcp.Description("The project to summarize."), mcp.Required()),
		), h.handleGetProjectDashboard)
	}

	if svc.Alerts != nil {
		s.AddTool(mcp.NewTool("list_open_alerts",
			mcp.WithDescription("List unresolved inactivity alerts."),
			mcp.WithString("project_id", mcp.Description("Only alerts for this project.")),
			mcp.WithString("target_type", mcp.Description("Only alerts for this kind of target."), mcp.Enum("STUDENT", "PROJECT")),
		), h.handleListOpenAlerts)

		s.AddTool(mcp.NewTool("resolve_alert",
			mcp.WithDescription("Mark an inactivity alert as resolved."),
			mcp.WithNumber("alert_id", mcp.Description("The alert to resolve."), mcp.Required()),
			mcp.WithString("resolved_by", mcp.Description("Who resolved the alert.")),
		), h.handleResolveAlert)

		s.AddTool(mcp.NewTool("run_alert_scan",
			mcp.WithDescription("Scan every project for inactive students and projects, opening and resolving alerts."),
		), h.handleRunAlertScan)
	}

	if svc.Syncer != nil {
		s.AddTool(mcp.NewTool("sync_project",
			mcp.WithDescription("Pull new GitHub and Jira activity for a project into the activity store."),
			mcp.WithString("project_id", mcp.Description("The project to sync."), mcp.Required()),
		), h.handleSyncProject)
	}

	return s
}

// StartMCPServer starts the TeamPulse MCP server on stdio.
func StartMCPServer(_ context.Context, svc Services) error {
	return server.ServeStdio(NewMCPServer(svc))
}
