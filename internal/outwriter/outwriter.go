// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/teampulse/core/agg"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

// Options select the output format and destination.
type Options struct {
	Output        schema.OutputMode
	OutputFile    string
	UseColors     bool
	ThresholdDays int
	Width         int // 0 detects the terminal width
}

// OptionsFromConfig derives output options from the runtime configuration.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		Output:        cfg.Output,
		OutputFile:    cfg.OutputFile,
		UseColors:     cfg.UseColors,
		ThresholdDays: cfg.AlertThresholdDays,
	}
}

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct {
	opts Options
}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter(opts Options) *OutWriter {
	if opts.ThresholdDays <= 0 {
		opts.ThresholdDays = contract.DefaultAlertThresholdDays
	}
	return &OutWriter{opts: opts}
}

// WriteDashboard prints a project dashboard using the configured output format.
func (ow *OutWriter) WriteDashboard(snap *schema.DashboardSnapshot, duration time.Duration) error {
	return writeWithFile(ow.opts.OutputFile, func(w writer) error {
		return renderDashboard(w, snap, ow.opts, duration)
	}, "Wrote dashboard")
}

// WriteAlerts prints alerts using the configured output format.
func (ow *OutWriter) WriteAlerts(alerts []schema.InactiveAlert) error {
	return writeWithFile(ow.opts.OutputFile, func(w writer) error {
		return renderAlerts(w, alerts, ow.opts)
	}, "Wrote alerts")
}

// WriteAlertSummary prints the outcome of one alert scan.
func (ow *OutWriter) WriteAlertSummary(summary schema.AlertRunSummary, duration time.Duration) error {
	return writeWithFile(ow.opts.OutputFile, func(w writer) error {
		return renderAlertSummary(w, summary, ow.opts, duration)
	}, "Wrote alert summary")
}

// WriteSyncResults prints sync results and per-project failures.
func (ow *OutWriter) WriteSyncResults(results []schema.SyncResult, failures []agg.SyncError, duration time.Duration) error {
	return writeWithFile(ow.opts.OutputFile, func(w writer) error {
		return renderSyncResults(w, results, failures, ow.opts, duration)
	}, "Wrote sync results")
}

// WriteJobs prints queued sync jobs.
func (ow *OutWriter) WriteJobs(jobs []schema.SyncJob) error {
	return writeWithFile(ow.opts.OutputFile, func(w writer) error {
		return renderJobs(w, jobs, ow.opts)
	}, "Wrote jobs")
}
