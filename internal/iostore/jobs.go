package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

const jobSelect = "SELECT job_id, project_id, status, attempts, error, created_at, started_at, finished_at FROM sync_jobs"

func scanJob(row rowScanner) (schema.SyncJob, error) {
	var j schema.SyncJob
	var status string
	var created int64
	var started, finished sql.NullInt64
	if err := row.Scan(&j.ID, &j.ProjectID, &status, &j.Attempts, &j.Error, &created, &started, &finished); err != nil {
		return j, err
	}
	var err error
	if j.Status, err = schema.ParseJobStatus(status); err != nil {
		return j, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
	}
	j.CreatedAt = time.Unix(created, 0).UTC()
	j.StartedAt = timeOrNil(started)
	j.FinishedAt = timeOrNil(finished)
	return j, nil
}

// CreateJob persists a new sync job.
func (s *StoreImpl) CreateJob(ctx context.Context, job schema.SyncJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO sync_jobs
		(job_id, project_id, status, attempts, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.ProjectID, string(job.Status), job.Attempts, job.Error,
		job.CreatedAt.Unix(), unixOrNull(job.StartedAt), unixOrNull(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of a job.
func (s *StoreImpl) UpdateJob(ctx context.Context, job schema.SyncJob) error {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE sync_jobs
		SET status = ?, attempts = ?, error = ?, started_at = ?, finished_at = ?
		WHERE job_id = ?`),
		string(job.Status), job.Attempts, job.Error, unixOrNull(job.StartedAt), unixOrNull(job.FinishedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	// MySQL reports zero for an unchanged row, so only a missing row is an error.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetJob(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetJob returns one job or ErrNotFound.
func (s *StoreImpl) GetJob(ctx context.Context, jobID string) (schema.SyncJob, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, s.bind(jobSelect+" WHERE job_id = ?"), jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return j, fmt.Errorf("job %s: %w", jobID, contract.ErrNotFound)
	}
	if err != nil {
		return j, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return j, nil
}

// ListJobs returns the most recent jobs, newest first. A non-positive limit lists all.
func (s *StoreImpl) ListJobs(ctx context.Context, limit int) ([]schema.SyncJob, error) {
	query := jobSelect + " ORDER BY created_at DESC, job_id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []schema.SyncJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
