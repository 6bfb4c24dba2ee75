package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/lease"
	"mediagen/internal/observability"
)

// ErrLeaseHeld means another worker currently owns the job.
var ErrLeaseHeld = errors.New("job lease held by another worker")

// Runner wraps the orchestrator with single-flight leasing and the retry
// loop: it keeps re-running Advance across transient failures until the
// job reaches a terminal state or the retry budget runs out.
type Runner struct {
	orch    *Orchestrator
	jobs    domain.JobRepository
	locker  lease.Locker
	policy  Policy
	metrics *observability.Collector
	logger  infra.Logger
	ttl     time.Duration
}

func NewRunner(orch *Orchestrator, jobs domain.JobRepository, locker lease.Locker, policy Policy, metrics *observability.Collector, logger infra.Logger, leaseTTL time.Duration) *Runner {
	return &Runner{orch: orch, jobs: jobs, locker: locker, policy: policy, metrics: metrics, logger: logger, ttl: leaseTTL}
}

// Process drives one job to a terminal outcome. It returns ErrLeaseHeld
// without touching the job when another worker holds the lease.
func (r *Runner) Process(ctx context.Context, jobID string) (Outcome, error) {
	jobLease, ok, err := r.locker.Acquire(ctx, jobID, r.ttl)
	if err != nil {
		return Outcome{}, fmt.Errorf("acquire lease for job %s: %w", jobID, err)
	}
	if !ok {
		return Outcome{}, ErrLeaseHeld
	}
	defer jobLease.Release()

	r.metrics.JobStarted()
	defer r.metrics.JobFinished()

	started := time.Now()
	for {
		out, err := r.orch.Advance(ctx, jobID)
		if err != nil {
			return Outcome{}, err
		}

		switch out.Kind {
		case OutcomeCompleted:
			r.metrics.RecordCompleted(time.Since(started).Seconds())
			return out, nil
		case OutcomeFailed:
			r.metrics.RecordFailed()
			return out, nil
		case OutcomeCancelled:
			// The cancellation metric is recorded where the cancel request
			// was accepted, not here.
			return out, nil
		}

		// Transient failure. Either re-run after backoff or, with the
		// budget spent, convert it into a permanent failure.
		if r.policy.Exhausted(out.Attempt) {
			msg := fmt.Sprintf("max retries exceeded after %d attempts: %s", out.Attempt, out.Reason)
			if err := r.jobs.MarkFailed(ctx, jobID, msg); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					if cur, gerr := r.jobs.GetByID(ctx, jobID); gerr == nil && cur.Status.Terminal() {
						return Outcome{Kind: outcomeKindFor(cur.Status), Reason: cur.ErrorMessage, Attempt: out.Attempt}, nil
					}
				}
				return Outcome{}, err
			}
			r.metrics.RecordFailed()
			r.logger.Error().Str("job_id", jobID).Int("attempts", out.Attempt).Msg("runner: retry budget exhausted, job failed")
			return Outcome{Kind: OutcomeFailed, Reason: msg, Attempt: out.Attempt}, nil
		}

		r.metrics.RecordRetry()
		delay := r.policy.Delay(out.Attempt + 1)
		r.logger.Warn().Str("job_id", jobID).Int("attempt", out.Attempt).Dur("delay", delay).Str("reason", out.Reason).Msg("runner: retrying after transient failure")
		if err := sleepCtx(ctx, delay); err != nil {
			return Outcome{}, err
		}
		// The TTL is sized for one attempt; refresh it before the next so
		// backoff sleeps cannot let the lease lapse mid-job. On failure the
		// conditional status updates still prevent duplicate transitions.
		if err := jobLease.Extend(ctx, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("job_id", jobID).Msg("runner: lease extension failed")
		}
	}
}
