package contract

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// Default values for configuration.
const (
	DefaultCacheTTL           = 5 * time.Minute
	DefaultAlertThresholdDays = 14
	DefaultMemberWindowDays   = 30
	DefaultAdvisoryDays       = 14
	DefaultSyncInterval       = 15 * time.Minute
	DefaultAlertInterval      = time.Hour
	DefaultMergeRetries       = 3
	MaxMergeRetries           = 10
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	DBBackend schema.DatabaseBackend
	DBConnect string // Please use env var as this is plaintext

	CacheBackend   schema.CacheBackend
	CacheDBConnect string // Please use env var as this is plaintext
	CacheTTL       time.Duration

	AlertThresholdDays int
	MemberWindowDays   int
	AdvisoryDays       int

	SyncInterval  time.Duration
	AlertInterval time.Duration
	Workers       int
	MergeRetries  int

	GitMirrorRoot string
	FeedDir       string

	LogLevel  logrus.Level
	LogFormat string

	Output      schema.OutputMode
	OutputFile  string
	UseColors   bool
	MetricsAddr string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	DBBackend      string `mapstructure:"db-backend"`
	DBConnect      string `mapstructure:"db-connect"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	CacheTTL       string `mapstructure:"cache-ttl"`

	AlertThresholdDays int `mapstructure:"alert-threshold-days"`
	MemberWindowDays   int `mapstructure:"member-window-days"`
	AdvisoryDays       int `mapstructure:"advisory-days"`

	SyncInterval  string `mapstructure:"sync-interval"`
	AlertInterval string `mapstructure:"alert-interval"`
	Workers       int    `mapstructure:"workers"`
	MergeRetries  int    `mapstructure:"merge-retries"`

	GitMirrorRoot string `mapstructure:"git-mirror-root"`
	FeedDir       string `mapstructure:"feed-dir"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	Output      string `mapstructure:"output"`
	OutputFile  string `mapstructure:"output-file"`
	Color       string `mapstructure:"color"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of connection strings
// for MySQL, PostgreSQL and Redis backends. The flag name is used in messages.
func ValidateDatabaseConnectionString(backend string, flagName string, connStr string) error {
	switch backend {
	case string(schema.SQLiteBackend), string(schema.NoneBackend), string(schema.MemoryCache):
		return nil
	case string(schema.MySQLBackend):
		if connStr == "" {
			return fmt.Errorf("%s is required when using %s backend", flagName, backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case string(schema.PostgreSQLBackend):
		if connStr == "" {
			return fmt.Errorf("%s is required when using %s backend", flagName, backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case string(schema.RedisCache):
		if connStr == "" {
			return fmt.Errorf("%s is required when using %s backend", flagName, backend)
		}
		u, err := url.Parse(connStr)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("Redis connection string must be a redis:// or rediss:// URL")
		}
	}
	return nil
}

// validateBackendConfigs validates store and cache backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Store Backend Validation ---
	cfg.DBBackend = schema.DatabaseBackend(strings.ToLower(input.DBBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.DBBackend]; !ok {
		return fmt.Errorf("invalid db backend '%s'. must be sqlite, mysql, postgresql", input.DBBackend)
	}
	cfg.DBConnect = input.DBConnect
	if err := ValidateDatabaseConnectionString(string(cfg.DBBackend), "db-connect", cfg.DBConnect); err != nil {
		return err
	}

	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.CacheBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, memory, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(string(cfg.CacheBackend), "cache-db-connect", cfg.CacheDBConnect); err != nil {
		return err
	}

	// For SQLite, resolve to actual file paths to catch default path conflicts
	if cfg.DBBackend == schema.SQLiteBackend && cfg.CacheBackend == schema.SQLiteCache {
		dbPath := cfg.DBConnect
		if dbPath == "" {
			dbPath = GetDBFilePath()
		}
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		if dbPath == cachePath && dbPath != ":memory:" {
			return fmt.Errorf("store and cache must use different SQLite database files. Both resolve to %q", dbPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the numeric and enum fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.GitMirrorRoot = strings.TrimSpace(input.GitMirrorRoot)
	cfg.FeedDir = strings.TrimSpace(input.FeedDir)
	cfg.OutputFile = input.OutputFile
	cfg.MetricsAddr = input.MetricsAddr

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.AlertThresholdDays <= 0 {
		return fmt.Errorf("alert-threshold-days must be greater than 0 (received %d)", input.AlertThresholdDays)
	}
	cfg.AlertThresholdDays = input.AlertThresholdDays

	if input.MemberWindowDays <= 0 {
		return fmt.Errorf("member-window-days must be greater than 0 (received %d)", input.MemberWindowDays)
	}
	cfg.MemberWindowDays = input.MemberWindowDays

	if input.AdvisoryDays < 0 {
		return fmt.Errorf("advisory-days cannot be negative (received %d)", input.AdvisoryDays)
	}
	cfg.AdvisoryDays = input.AdvisoryDays

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.MergeRetries < 0 || input.MergeRetries > MaxMergeRetries {
		return fmt.Errorf("merge-retries must be between 0 and %d (received %d)", MaxMergeRetries, input.MergeRetries)
	}
	cfg.MergeRetries = input.MergeRetries

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(input.LogLevel)))
	if err != nil {
		return fmt.Errorf("invalid log level '%s'", input.LogLevel)
	}
	cfg.LogLevel = level

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(input.LogFormat))
	if cfg.LogFormat != LogFormatJSON && cfg.LogFormat != LogFormatText {
		return fmt.Errorf("invalid log format '%s'. must be json, text", input.LogFormat)
	}

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	return nil
}

// processDurations parses the duration-valued keys.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	parse := func(name, raw string, floor time.Duration) (time.Duration, error) {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("invalid %s '%s': %w", name, raw, err)
		}
		if d < floor {
			return 0, fmt.Errorf("%s must be at least %s (received %s)", name, floor, d)
		}
		return d, nil
	}

	var err error
	if cfg.CacheTTL, err = parse("cache-ttl", input.CacheTTL, 0); err != nil {
		return err
	}
	if cfg.SyncInterval, err = parse("sync-interval", input.SyncInterval, time.Second); err != nil {
		return err
	}
	if cfg.AlertInterval, err = parse("alert-interval", input.AlertInterval, time.Second); err != nil {
		return err
	}
	return nil
}
