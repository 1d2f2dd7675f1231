package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// syncCmd pulls new activity into the store.
var syncCmd = &cobra.Command{
	Use:   "sync [project-id...]",
	Short: "Pull new GitHub and Jira activity for projects",
	Long: `Fetch events newer than each project's watermark, attribute them to
team members and merge them into the daily activity ledger.

Syncing is idempotent: events already in the ledger are skipped, so a sync
can be re-run safely after a failure.

Examples:
  # Sync two projects
  teampulse sync capstone-a capstone-b

  # Sync every project with 8 workers
  teampulse sync --all --workers 8`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		ids := args
		if all {
			projects, err := deps.store.ListProjects(rootCtx)
			if err != nil {
				return err
			}
			ids = nil
			for _, p := range projects {
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			return errors.New("pass at least one project id or --all")
		}

		start := time.Now()
		results, failures := newAggregator().SyncAll(rootCtx, ids, cfg.Workers)
		if err := newOutWriter().WriteSyncResults(results, failures, time.Since(start)); err != nil {
			return err
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d projects failed to sync", len(failures), len(ids))
		}
		return nil
	},
}
