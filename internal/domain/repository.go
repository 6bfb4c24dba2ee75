package domain

import (
	"context"
	"time"
)

// JobFilter narrows job listings.
type JobFilter struct {
	Status *JobStatus
	Limit  int
	Offset int
}

// JobRepository defines persistence for job entities. All status mutations
// are conditional on the current status (optimistic concurrency): a write
// whose lifecycle edge no longer matches fails with ErrInvalidTransition
// and leaves the record unchanged.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)

	// MarkProcessing transitions pending→processing, setting started_at on
	// the first transition only, or confirms an already-processing job.
	// Either way retry_count is incremented by one. Returns the refreshed
	// job, ErrInvalidTransition if the job is terminal.
	MarkProcessing(ctx context.Context, id string) (*Job, error)

	// SetExternalID persists the generation service handle. The write is
	// only applied while the stored handle is empty; re-applying the same
	// handle is a no-op and a conflicting handle is an error.
	SetExternalID(ctx context.Context, id, externalID string) error

	MarkCompleted(ctx context.Context, id string, result Result) error
	MarkFailed(ctx context.Context, id, message string) error

	// RequestCancel transitions a pending or processing job to cancelled.
	RequestCancel(ctx context.Context, id string) error

	// ListRunnable returns ids of jobs a worker should pick up: pending
	// jobs, plus processing jobs not touched since stalledBefore (crashed
	// attempts awaiting resume).
	ListRunnable(ctx context.Context, stalledBefore time.Time, limit int) ([]string, error)

	// ListReclaimable returns completed jobs finished before olderThan
	// that still reference a stored artifact.
	ListReclaimable(ctx context.Context, olderThan time.Time, limit int) ([]Job, error)

	// ClearResult removes the artifact references from a completed job.
	// The status stays completed.
	ClearResult(ctx context.Context, id string) error
}
