package core

import (
	"context"
	"sync"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// ProjectLister lists the projects a scheduler works on.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]schema.Project, error)
}

// AlertRunner runs one alert scan.
type AlertRunner interface {
	Run(ctx context.Context) (schema.AlertRunSummary, error)
}

// SchedulerOptions tune a Scheduler.
type SchedulerOptions struct {
	SyncInterval  time.Duration
	AlertInterval time.Duration
	Logger        logrus.FieldLogger
}

// Scheduler submits periodic syncs and runs periodic alert scans. The two
// loops are independent; neither waits on the other.
type Scheduler struct {
	projects      ProjectLister
	queue         *SyncQueue
	alerts        AlertRunner
	syncInterval  time.Duration
	alertInterval time.Duration
	log           logrus.FieldLogger
}

// NewScheduler creates a Scheduler. A nil queue or alert runner disables that loop.
func NewScheduler(projects ProjectLister, queue *SyncQueue, alerts AlertRunner, opts SchedulerOptions) *Scheduler {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = contract.DefaultSyncInterval
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = contract.DefaultAlertInterval
	}
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	return &Scheduler{
		projects:      projects,
		queue:         queue,
		alerts:        alerts,
		syncInterval:  opts.SyncInterval,
		alertInterval: opts.AlertInterval,
		log:           opts.Logger,
	}
}

// Run ticks both loops until ctx is cancelled. Each loop also fires once at start.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if s.queue != nil {
		wg.Go(func() { s.loop(ctx, s.syncInterval, s.SyncTick) })
	}
	if s.alerts != nil {
		wg.Go(func() { s.loop(ctx, s.alertInterval, s.AlertTick) })
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// SyncTick queues one sync job per project.
func (s *Scheduler) SyncTick(ctx context.Context) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduled sync could not list projects")
		return
	}
	queued := 0
	for _, p := range projects {
		if _, err := s.queue.Submit(ctx, p.ID); err != nil {
			s.log.WithError(err).WithField("project", p.ID).Warn("scheduled sync not queued")
			continue
		}
		queued++
	}
	s.log.WithField("queued", queued).Debug("scheduled sync tick")
}

// AlertTick runs one alert scan.
func (s *Scheduler) AlertTick(ctx context.Context) {
	if _, err := s.alerts.Run(ctx); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Error("scheduled alert scan failed")
	}
}
