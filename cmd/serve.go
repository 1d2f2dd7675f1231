package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/teampulse/core"
	"github.com/spf13/cobra"
)

// poolStatsInterval is how often serve samples the store connection pool.
const poolStatsInterval = 15 * time.Second

// serveCmd runs the scheduler until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run periodic syncs and alert scans",
	Long: `Run the scheduler in the foreground. Every --sync-interval a sync job is
queued for each project; every --alert-interval the alert scan runs. Both
fire once on start. Prometheus metrics are served on --metrics-addr.

Stops gracefully on SIGINT or SIGTERM, letting running jobs finish.

Examples:
  teampulse serve --sync-interval 10m --alert-interval 1h --metrics-addr :9090`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		log := deps.log

		var srv *http.Server
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", deps.metrics.Handler())
			srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("metrics server stopped")
				}
			}()
			log.WithField("addr", cfg.MetricsAddr).Info("metrics available on /metrics")
		}
		go samplePoolStats(ctx)

		// The signal only stops scheduling; queued jobs drain in Stop.
		queue := newSyncQueue()
		queue.Start(rootCtx)
		scheduler := core.NewScheduler(deps.store, queue, newAlertEngine(), core.SchedulerOptions{
			SyncInterval:  cfg.SyncInterval,
			AlertInterval: cfg.AlertInterval,
			Logger:        log.WithField("component", "scheduler"),
		})
		log.WithField("sync_interval", cfg.SyncInterval).WithField("alert_interval", cfg.AlertInterval).Info("scheduler started")
		scheduler.Run(ctx)

		log.Info("shutting down")
		var shutdownErr error
		if err := queue.Stop(30 * time.Second); err != nil {
			shutdownErr = err
		}
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				shutdownErr = errors.Join(shutdownErr, err)
			}
		}
		log.Info("shutdown complete")
		return shutdownErr
	},
}

func samplePoolStats(ctx context.Context) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		deps.metrics.RecordDBPoolStats(deps.store.DBStats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
