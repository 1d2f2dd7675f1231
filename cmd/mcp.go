package cmd

import (
	"github.com/huangsam/teampulse/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the TeamPulse MCP server",
	Long: `Launch an MCP server on stdio so AI agents can read dashboards, list and
resolve alerts, run alert scans and sync projects through standard tools.

Logs go to stderr; stdout carries the protocol.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, mcp.Services{
			Dashboards: newDashboardService(),
			Alerts:     newAlertEngine(),
			Syncer:     newAggregator(),
			Version:    version,
		})
	},
}
