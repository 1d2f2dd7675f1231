package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/huangsam/teampulse/core"
	"github.com/huangsam/teampulse/core/agg"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/iocache"
	"github.com/huangsam/teampulse/internal/iostore"
	"github.com/huangsam/teampulse/internal/outwriter"
	"github.com/huangsam/teampulse/internal/source"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// deps holds the long-lived handles opened by sharedSetup.
var deps = &runtimeDeps{}

type runtimeDeps struct {
	log     *logrus.Logger
	store   *iostore.StoreImpl
	cache   contract.CacheStore
	metrics *telemetry.Metrics
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "teampulse",
	Short: "Track team activity and raise inactivity alerts for student projects.",
	Long: `TeamPulse pulls commit and issue activity for project teams into a
per-student daily ledger, serves cached team dashboards, and flags students
and projects that have gone quiet.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in the .env file, config file and ENV variables if set.
func initConfig() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		contract.LogWarn("Could not load .env file", err)
	}

	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("TEAMPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("db-backend", schema.SQLiteBackend)
	viper.SetDefault("db-connect", "")
	viper.SetDefault("cache-backend", schema.MemoryCache)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("cache-ttl", contract.DefaultCacheTTL.String())
	viper.SetDefault("alert-threshold-days", contract.DefaultAlertThresholdDays)
	viper.SetDefault("member-window-days", contract.DefaultMemberWindowDays)
	viper.SetDefault("advisory-days", contract.DefaultAdvisoryDays)
	viper.SetDefault("sync-interval", contract.DefaultSyncInterval.String())
	viper.SetDefault("alert-interval", contract.DefaultAlertInterval.String())
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("merge-retries", contract.DefaultMergeRetries)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", contract.LogFormatText)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
}

// setConfigFile points viper at --config or the default .teampulse.yaml locations.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".teampulse") // Name of config file (without extension)
	viper.SetConfigType("yaml")       // We'll use YAML format
	viper.AddConfigPath(".")          // Look in the current directory
	viper.AddConfigPath("$HOME")      // Look in the home directory
}

// loadConfig merges defaults, file, env and flags, then validates them into cfg.
func loadConfig() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	deps.log = contract.ConfigureLogger(cfg)
	return nil
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigFile()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup validates config and opens the store, the cache and the metrics registry.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	store, err := iostore.Open(cfg.DBBackend, cfg.DBConnect, iostore.Options{
		MergeRetries: cfg.MergeRetries,
		Logger:       deps.log.WithField("component", "store"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	deps.store = store

	cache, err := iocache.NewCacheStore(cfg.CacheBackend, cfg.CacheDBConnect, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.cache = cache
	deps.metrics = telemetry.New()
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// closeDeps releases whatever sharedSetup opened.
func closeDeps() {
	if deps.cache != nil {
		if err := deps.cache.Close(); err != nil {
			contract.LogWarn("Failed to close cache", err)
		}
		deps.cache = nil
	}
	if deps.store != nil {
		if err := deps.store.Close(); err != nil {
			contract.LogWarn("Failed to close store", err)
		}
		deps.store = nil
	}
}

// newAdapter builds the sync adapter from the configured mirror root and feed directory.
func newAdapter() contract.SyncAdapter {
	var git, feed contract.SyncAdapter
	if cfg.GitMirrorRoot != "" {
		git = source.NewGitMirrorSource(contract.NewLocalGitClient(), cfg.GitMirrorRoot, deps.log.WithField("adapter", "git"))
	}
	if cfg.FeedDir != "" {
		feed = source.NewFeedSource(cfg.FeedDir, deps.log.WithField("adapter", "feed"))
	}
	return source.NewMultiSource(git, feed)
}

func newAggregator() *agg.Aggregator {
	return agg.New(deps.store, newAdapter(), agg.Options{
		Logger:  deps.log.WithField("component", "aggregator"),
		Metrics: deps.metrics,
	})
}

func newDashboardService() *core.DashboardService {
	return core.NewDashboardService(deps.store, deps.cache, cfg.CacheTTL, core.DashboardOptions{
		MemberWindowDays: cfg.MemberWindowDays,
		AdvisoryDays:     cfg.AdvisoryDays,
		Logger:           deps.log.WithField("component", "dashboard"),
		Metrics:          deps.metrics,
	})
}

func newAlertEngine() *core.AlertEngine {
	return core.NewAlertEngine(deps.store, core.AlertOptions{
		ThresholdDays: cfg.AlertThresholdDays,
		Workers:       cfg.Workers,
		Logger:        deps.log.WithField("component", "alerts"),
		Metrics:       deps.metrics,
	})
}

func newSyncQueue() *core.SyncQueue {
	return core.NewSyncQueue(deps.store, newAggregator(), core.SyncQueueOptions{
		Workers: cfg.Workers,
		Logger:  deps.log.WithField("component", "queue"),
		Metrics: deps.metrics,
	})
}

func newOutWriter() *outwriter.OutWriter {
	return outwriter.NewOutWriter(outwriter.OptionsFromConfig(cfg))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
