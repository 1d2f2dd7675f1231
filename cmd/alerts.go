package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/teampulse/schema"
	"github.com/spf13/cobra"
)

// alertsCmd groups the inactivity alert commands.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Scan, list and resolve inactivity alerts",
	Long: `Inactivity alerts open when a student or a project has had no recorded
activity for longer than --alert-threshold-days. At most one alert per
target is open at a time; it is updated in place while the target stays
quiet and resolved once activity resumes.

Subcommands:
  scan    - Evaluate every project now
  list    - Show open alerts
  resolve - Mark an alert resolved by hand`,
}

var alertsScanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Evaluate every project and student for inactivity",
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		start := time.Now()
		summary, err := newAlertEngine().Run(rootCtx)
		if err != nil {
			return err
		}
		if err := newOutWriter().WriteAlertSummary(summary, time.Since(start)); err != nil {
			return err
		}
		if len(summary.Failures) > 0 {
			return fmt.Errorf("%d projects failed to scan", len(summary.Failures))
		}
		return nil
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open inactivity alerts",
	Long: `List unresolved alerts, optionally narrowed by target type or project.

Examples:
  teampulse alerts list
  teampulse alerts list --target-type student --project capstone-a`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		targetType, _ := cmd.Flags().GetString("target-type")
		projectID, _ := cmd.Flags().GetString("project")

		filter := schema.AlertFilter{ProjectID: projectID}
		switch tt := schema.AlertTargetType(strings.ToUpper(targetType)); tt {
		case "":
		case schema.StudentTarget, schema.ProjectTarget:
			filter.TargetType = tt
		default:
			return fmt.Errorf("invalid --target-type '%s'. must be student or project", targetType)
		}

		alerts, err := newAlertEngine().ListOpenAlerts(rootCtx, filter)
		if err != nil {
			return err
		}
		return newOutWriter().WriteAlerts(alerts)
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark an inactivity alert as resolved",
	Long: `Resolve an alert by hand. Resolving an alert that is already resolved is
a no-op. If the target is still inactive, the next scan opens a new alert.

Examples:
  teampulse alerts resolve 42 --by mentor@example.com`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		alertID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || alertID <= 0 {
			return fmt.Errorf("invalid alert id '%s'", args[0])
		}
		var resolvedBy *string
		if by, _ := cmd.Flags().GetString("by"); by != "" {
			resolvedBy = &by
		}
		if err := newAlertEngine().ResolveAlert(rootCtx, alertID, resolvedBy); err != nil {
			return err
		}
		cmd.Printf("Alert %d resolved.\n", alertID)
		return nil
	},
}
