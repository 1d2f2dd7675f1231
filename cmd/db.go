package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/teampulse/internal/iocache"
	"github.com/huangsam/teampulse/internal/iostore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dbMigrateSetup validates config without opening the store, so that
// migrations can run against a fresh or rolled back database.
func dbMigrateSetup(_ *cobra.Command, _ []string) error {
	return loadConfig()
}

// dbCmd focused on activity store management.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the activity store",
	Long: `Manage the durable activity store: projects, rosters, the daily
activity ledger, watermarks, alerts and sync jobs.

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  migrate - Move the schema to a version
  status  - Show schema version and table sizes`,
}

// dbMigrateCmd runs schema migrations.
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run store schema migrations",
	Long: `Manage database schema versions for the activity store.

By default, migrates to the latest version. Use --target-version for specific versions.
Every other command also migrates to the latest version on start.

Examples:
  # Migrate to latest version (default)
  teampulse db migrate

  # Rollback everything
  teampulse db migrate --target-version 0`,
	PreRunE: dbMigrateSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		targetVersion := viper.GetInt("target-version")
		res, err := iostore.Migrate(cfg.DBBackend, cfg.DBConnect, targetVersion)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if !res.Changed {
			cmd.Printf("Store already at version %d.\n", res.To)
			return nil
		}
		cmd.Printf("Store migrated from version %d to %d.\n", res.From, res.To)
		return nil
	},
}

// dbStatusCmd shows store status.
var dbStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store schema version and table sizes",
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := deps.store.GetStatus(rootCtx)
		if err != nil {
			return fmt.Errorf("failed to get store status: %w", err)
		}
		iocache.PrintStoreStatus(os.Stdout, status)
		return nil
	},
}
