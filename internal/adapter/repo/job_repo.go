// Package repo provides the PostgreSQL-backed implementations of the
// domain repository contracts.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository. Every status mutation is
// guarded by the expected prior status in SQL, so a lost race surfaces as
// ErrInvalidTransition instead of silently clobbering a terminal record.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.Prompt,
		job.Model,
		nullableBytes(job.Parameters),
		job.Status,
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QGetJob, jobID)
	return scanJob(row)
}

// List returns jobs newest first, optionally filtered by status.
func (r *JobRepositoryPG) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListJobs, status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkProcessing performs the attempt-entry transition and counts the attempt.
func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QMarkProcessing, jobID)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return nil, r.transitionFailure(ctx, jobID)
}

// SetExternalID persists the submission handle, write-once.
func (r *JobRepositoryPG) SetExternalID(ctx context.Context, jobID, externalID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetExternalID, jobID, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ExternalID == externalID {
		return nil
	}
	return fmt.Errorf("job %s already has external id %q", jobID, job.ExternalID)
}

// MarkCompleted records the materialized result and finishes the job.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID string, result domain.Result) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkCompleted, jobID, result.FilePath, result.ResultURL, result.SizeBytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, jobID)
	}
	return nil
}

// MarkFailed records the failure message and finishes the job.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, message string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkFailed, jobID, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, jobID)
	}
	return nil
}

// RequestCancel cancels a pending or processing job.
func (r *JobRepositoryPG) RequestCancel(ctx context.Context, jobID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequestCancel, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, jobID)
	}
	return nil
}

// ListRunnable returns ids of jobs a worker should advance.
func (r *JobRepositoryPG) ListRunnable(ctx context.Context, stalledBefore time.Time, limit int) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRunnable, stalledBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListReclaimable returns aged completed jobs still holding artifacts.
func (r *JobRepositoryPG) ListReclaimable(ctx context.Context, olderThan time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListReclaimable, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClearResult drops the artifact references from a completed job.
func (r *JobRepositoryPG) ClearResult(ctx context.Context, jobID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QClearResult, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, jobID)
	}
	return nil
}

// transitionFailure turns a zero-row conditional update into the precise
// error: unknown id or a lifecycle edge that no longer applies.
func (r *JobRepositoryPG) transitionFailure(ctx context.Context, jobID string) error {
	row := r.sql.QueryRow(ctx, sqlinline.QJobStatus, jobID)
	var status domain.JobStatus
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, jobID, status)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Prompt,
		&job.Model,
		&job.Parameters,
		&job.Status,
		&job.ExternalID,
		&job.RetryCount,
		&job.ErrorMessage,
		&job.Result.FilePath,
		&job.Result.ResultURL,
		&job.Result.SizeBytes,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
