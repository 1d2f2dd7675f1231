// Package cmd defines the command-line interface for teampulse.
package cmd

import (
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(closeDeps)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	alertsCmd.AddCommand(alertsScanCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	exportCmd.AddCommand(exportActivityCmd)
	exportCmd.AddCommand(exportAlertsCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("db-connect", "", "Store connection string (file path for sqlite)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.MemoryCache), "Dashboard cache backend: sqlite or mysql or postgresql or redis or memory or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Dashboard cache connection string (redis:// URL for redis)")
	rootCmd.PersistentFlags().String("cache-ttl", contract.DefaultCacheTTL.String(), "How long a cached dashboard stays fresh")
	rootCmd.PersistentFlags().Int("alert-threshold-days", contract.DefaultAlertThresholdDays, "Days without activity before an alert opens")
	rootCmd.PersistentFlags().Int("member-window-days", contract.DefaultMemberWindowDays, "Trailing window of the dashboard member breakdown")
	rootCmd.PersistentFlags().Int("advisory-days", contract.DefaultAdvisoryDays, "Inactive days before a member gets a dashboard advisory")
	rootCmd.PersistentFlags().String("sync-interval", contract.DefaultSyncInterval.String(), "How often serve queues a sync of every project")
	rootCmd.PersistentFlags().String("alert-interval", contract.DefaultAlertInterval.String(), "How often serve runs the alert scan")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("merge-retries", contract.DefaultMergeRetries, "Retries of a store merge that hit a write conflict")
	rootCmd.PersistentFlags().String("git-mirror-root", "", "Directory holding <owner>/<repo> git mirrors")
	rootCmd.PersistentFlags().String("feed-dir", "", "Directory holding <source>/<ref>.ndjson event exports")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.LogFormatText, "Log format: text or json")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "Listen address of the serve metrics endpoint (empty disables it)")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	syncCmd.Flags().Bool("all", false, "Sync every project")

	alertsListCmd.Flags().String("target-type", "", "Only alerts for STUDENT or PROJECT targets")
	alertsListCmd.Flags().String("project", "", "Only alerts for this project")
	alertsResolveCmd.Flags().String("by", "", "Who resolved the alert")

	jobsListCmd.Flags().Int("limit", 50, "Number of most recent jobs to show (0 = all)")

	exportActivityCmd.Flags().String("project", "", "Only this project (default all)")
	exportActivityCmd.Flags().String("from", "", "First UTC day YYYY-MM-DD (default 30 days ago)")
	exportActivityCmd.Flags().String("to", "", "Last UTC day YYYY-MM-DD (default today)")

	// Bind all flags of dbMigrateCmd to Viper
	dbMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(dbMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding db migrate flags", err)
	}
}
