package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/teampulse/internal/iocache"
	"github.com/spf13/cobra"
)

// cacheSetup loads configuration and opens the dashboard cache only.
// This is used by commands that need cache access without the store.
func cacheSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	cache, err := iocache.NewCacheStore(cfg.CacheBackend, cfg.CacheDBConnect, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.cache = cache
	return nil
}

// cacheCmd focused on dashboard cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the dashboard cache",
	Long: `Manage the cache of computed project dashboards.

Dashboards are cached for --cache-ttl and recomputed once stale. The memory
backend lives only as long as the process; use sqlite, mysql, postgresql or
redis to share cached dashboards between runs.

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached dashboards`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached dashboards",
	Long: `Delete every cached dashboard from the configured backend. The next
dashboard request recomputes from the store.

Examples:
  TEAMPULSE_CACHE_BACKEND=redis TEAMPULSE_CACHE_DB_CONNECT=redis://localhost:6379/0 teampulse cache clear`,
	PreRunE: cacheSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := deps.cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		cmd.Println("Cache cleared successfully.")
		return nil
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display cache statistics and connection details",
	PreRunE: cacheSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := deps.cache.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get cache status: %w", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
		return nil
	},
}
