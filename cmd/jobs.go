package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// jobsCmd groups the sync job queue commands.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Queue syncs and inspect the sync job history",
	Long: `Sync jobs run a project sync on a worker pool and retry transient fetch
failures with exponential backoff. Every job is recorded in the store with
its attempts and final status.`,
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit <project-id>...",
	Short: "Queue syncs and wait for them to finish",
	Long: `Queue one sync job per project, run them on the worker pool and wait for
every job to finish. Use "jobs list" to see the outcome.

Examples:
  teampulse jobs submit capstone-a capstone-b`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		queue := newSyncQueue()
		queue.Start(rootCtx)
		for _, id := range args {
			jobID, err := queue.Submit(rootCtx, id)
			if err != nil {
				_ = queue.Stop(time.Minute)
				return err
			}
			cmd.Printf("Queued job %s for %s\n", jobID, id)
		}
		if err := queue.Stop(10 * time.Minute); err != nil {
			return err
		}

		jobs, err := deps.store.ListJobs(rootCtx, len(args))
		if err != nil {
			return err
		}
		return newOutWriter().WriteJobs(jobs)
	},
}

var jobsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "Show recent sync jobs",
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jobs, err := deps.store.ListJobs(rootCtx, limit)
		if err != nil {
			return err
		}
		return newOutWriter().WriteJobs(jobs)
	},
}
