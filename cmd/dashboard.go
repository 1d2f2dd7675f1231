package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// dashboardCmd prints a project's team dashboard.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard <project-id>",
	Short: "Show team activity metrics for a project",
	Long: `Show the GitHub and Jira rollups of a project and each member's
contribution over the trailing member window.

Dashboards are served from the cache while fresh (see --cache-ttl) and
recomputed from the store otherwise.

Examples:
  teampulse dashboard capstone-a
  teampulse dashboard capstone-a --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		start := time.Now()
		snap, err := newDashboardService().GetProjectDashboard(rootCtx, args[0])
		if err != nil {
			return err
		}
		return newOutWriter().WriteDashboard(snap, time.Since(start))
	},
}
