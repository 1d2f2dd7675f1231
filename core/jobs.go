package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// ErrQueueClosed is returned by Submit once the queue has been stopped.
var ErrQueueClosed = errors.New("sync queue is closed")

// Syncer runs one project sync.
type Syncer interface {
	Sync(ctx context.Context, projectID string) (schema.SyncResult, error)
}

// SyncQueueOptions tune a SyncQueue.
type SyncQueueOptions struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	// NewBackOff builds the retry policy of one job. Defaults to exponential.
	NewBackOff func() backoff.BackOff
	Logger     logrus.FieldLogger
	Metrics    *telemetry.Metrics
	Now        func() time.Time
}

// SyncQueue runs submitted syncs on supervised workers. Every job is
// persisted, so its outcome is observable apart from whoever submitted it.
type SyncQueue struct {
	jobs    contract.JobStore
	syncer  Syncer
	workers int
	retries int
	newBO   func() backoff.BackOff
	log     logrus.FieldLogger
	metrics *telemetry.Metrics
	now     func() time.Time

	ch     chan schema.SyncJob
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSyncQueue creates a queue. Call Start before submitting work.
func NewSyncQueue(jobs contract.JobStore, syncer Syncer, opts SyncQueueOptions) *SyncQueue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = contract.DefaultMergeRetries
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultJobBackOff
	}
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyncQueue{
		jobs:    jobs,
		syncer:  syncer,
		workers: opts.Workers,
		retries: opts.MaxRetries,
		newBO:   opts.NewBackOff,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		ch:      make(chan schema.SyncJob, opts.QueueSize),
	}
}

func defaultJobBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 5 * time.Minute
	return policy
}

// Start launches the workers. Only Stop ends them; cancelling ctx does not
// interrupt running jobs, so Stop can drain the queue after a signal.
func (q *SyncQueue) Start(ctx context.Context) {
	q.mu.Lock()
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.mu.Unlock()
	for range q.workers {
		q.wg.Go(func() {
			for job := range q.ch {
				q.run(job)
			}
		})
	}
}

// Submit persists a queued job for the project and hands it to the workers.
func (q *SyncQueue) Submit(ctx context.Context, projectID string) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed || q.ctx == nil {
		return "", ErrQueueClosed
	}

	job := schema.SyncJob{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    schema.JobQueued,
		CreatedAt: contract.NormalizeTime(q.now()),
	}
	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}

	select {
	case q.ch <- job:
		q.log.WithFields(logrus.Fields{"job": job.ID, "project": projectID}).Debug("sync job queued")
		return job.ID, nil
	case <-ctx.Done():
		q.fail(job, ctx.Err())
		return "", ctx.Err()
	case <-q.ctx.Done():
		q.fail(job, ErrQueueClosed)
		return "", ErrQueueClosed
	}
}

// Stop closes the queue and waits up to timeout for the workers to drain it.
// Jobs still running at the deadline are cancelled.
func (q *SyncQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if q.cancel != nil {
			q.cancel()
		}
		return nil
	case <-time.After(timeout):
		if q.cancel != nil {
			q.cancel()
		}
		<-done
		return fmt.Errorf("sync queue did not drain within %s", timeout)
	}
}

func (q *SyncQueue) run(job schema.SyncJob) {
	log := q.log.WithFields(logrus.Fields{"job": job.ID, "project": job.ProjectID})
	job.Status = schema.JobRunning
	job.StartedAt = contract.TimePtr(q.now())
	q.update(job)

	var result schema.SyncResult
	op := func() error {
		job.Attempts++
		var err error
		result, err = q.syncer.Sync(q.ctx, job.ProjectID)
		if err == nil {
			return nil
		}
		if contract.IsTransient(err) {
			log.WithError(err).WithField("attempt", job.Attempts).Warn("transient sync failure, retrying")
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(q.newBO(), uint64(q.retries)), q.ctx)

	if err := backoff.Retry(op, policy); err != nil {
		log.WithError(err).WithField("attempts", job.Attempts).Error("sync job failed")
		q.fail(job, err)
		return
	}

	job.Status = schema.JobCompleted
	job.Error = ""
	job.FinishedAt = contract.TimePtr(q.now())
	q.update(job)
	q.metrics.JobFinished(string(schema.JobCompleted))
	log.WithFields(logrus.Fields{
		"attempts": job.Attempts,
		"events":   result.EventsProcessed,
		"upserted": result.RecordsUpserted,
	}).Info("sync job completed")
}

func (q *SyncQueue) fail(job schema.SyncJob, err error) {
	job.Status = schema.JobFailed
	job.Error = err.Error()
	job.FinishedAt = contract.TimePtr(q.now())
	q.update(job)
	q.metrics.JobFinished(string(schema.JobFailed))
}

// update persists job state. The job context may already be cancelled, so a fresh one is used.
func (q *SyncQueue) update(job schema.SyncJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.jobs.UpdateJob(ctx, job); err != nil {
		q.log.WithError(err).WithField("job", job.ID).Error("failed to record job state")
	}
}
