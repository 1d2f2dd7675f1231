// Package telemetry exposes Prometheus collectors for the sync, alert and cache paths.
package telemetry

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teampulse"

// Event outcomes recorded by SyncEvents.
const (
	OutcomeApplied      = "applied"
	OutcomeDuplicate    = "duplicate"
	OutcomeUnattributed = "unattributed"
)

// Cache results recorded by CacheRequests.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheWriteError = "write_error"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SyncRuns         *prometheus.CounterVec
	SyncEvents       *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	AlertTransitions *prometheus.CounterVec
	OpenAlerts       prometheus.Gauge
	CacheRequests    *prometheus.CounterVec
	JobsFinished     *prometheus.CounterVec
	DBConnPoolStats  *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Project sync runs by result",
		}, []string{"result"}),
		SyncEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_total",
			Help:      "Fetched events by source and outcome",
		}, []string{"source", "outcome"}),
		SyncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Project sync duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		AlertTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "transitions_total",
			Help:      "Alert state transitions",
		}, []string{"transition"}),
		OpenAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "open",
			Help:      "Unresolved alerts seen by the last engine run",
		}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard_cache",
			Name:      "requests_total",
			Help:      "Dashboard cache lookups and write failures",
		}, []string{"result"}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Queued sync jobs by final status",
		}, []string{"status"}),
		DBConnPoolStats: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "db_connection_pool",
			Help:      "Database connection pool statistics",
		}, []string{"stat"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSync records one project sync.
func (m *Metrics) ObserveSync(started time.Time, err error) {
	if m == nil {
		return
	}
	r := result(err)
	m.SyncRuns.WithLabelValues(r).Inc()
	m.SyncDuration.WithLabelValues(r).Observe(time.Since(started).Seconds())
}

// AddSyncEvents counts n events for a source and outcome.
func (m *Metrics) AddSyncEvents(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SyncEvents.WithLabelValues(source, outcome).Add(float64(n))
}

// AlertTransition counts one opened, updated or resolved alert.
func (m *Metrics) AlertTransition(transition string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(transition).Inc()
}

// SetOpenAlerts records the number of unresolved alerts.
func (m *Metrics) SetOpenAlerts(n int) {
	if m == nil {
		return
	}
	m.OpenAlerts.Set(float64(n))
}

// CacheResult counts a dashboard cache hit, miss or write failure.
func (m *Metrics) CacheResult(r string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(r).Inc()
}

// JobFinished counts a finished queued job.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
}

// RecordDBPoolStats records database connection pool statistics.
func (m *Metrics) RecordDBPoolStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(stats.WaitDuration.Milliseconds()))
}
