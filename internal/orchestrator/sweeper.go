package orchestrator

import (
	"context"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/observability"
	"mediagen/internal/storage"
)

// Sweeper reclaims artifacts of completed jobs older than the retention
// age. The job record stays; only the file and its result pointers go.
type Sweeper struct {
	jobs    domain.JobRepository
	store   storage.ArtifactStore
	metrics *observability.Collector
	logger  infra.Logger

	RetentionAge time.Duration
	BatchSize    int
}

func NewSweeper(jobs domain.JobRepository, store storage.ArtifactStore, metrics *observability.Collector, logger infra.Logger, retentionAge time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{jobs: jobs, store: store, metrics: metrics, logger: logger, RetentionAge: retentionAge, BatchSize: batchSize}
}

// Sweep runs one reclamation pass and returns how many artifacts it
// removed. A file already gone on disk still gets its pointers cleared,
// so re-running a partially failed sweep converges.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.RetentionAge)
	expired, err := s.jobs.ListReclaimable(ctx, cutoff, s.BatchSize)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for i := range expired {
		job := &expired[i]
		if err := ctx.Err(); err != nil {
			return reclaimed, err
		}
		// Delete the file before clearing pointers: a crash in between
		// leaves the job listed for the next pass, which tolerates the
		// already-missing file.
		if _, err := s.store.Delete(ctx, job.ID, "png"); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweeper: failed to delete artifact, skipping")
			continue
		}
		if _, err := s.store.DeleteMetadata(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweeper: failed to delete metadata")
		}
		if err := s.jobs.ClearResult(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweeper: failed to clear result pointers")
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 {
		s.metrics.RecordReclaimed(reclaimed)
		s.logger.Info().Int("reclaimed", reclaimed).Time("cutoff", cutoff).Msg("sweeper: reclamation pass finished")
	}
	return reclaimed, nil
}

// Run sweeps on the given interval until the context ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("sweeper: pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
