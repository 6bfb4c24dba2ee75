// Package orchestrator drives generation jobs through their lifecycle:
// one Advance invocation moves one job as far as it can, resuming safely
// from any partial progress a previous attempt left behind.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/generation"
	"mediagen/internal/infra"
	"mediagen/internal/observability"
	"mediagen/internal/storage"
)

// OutcomeKind is the result of one orchestration attempt.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
	// OutcomeRetryable signals the invoking layer to re-run Advance later;
	// the job stays in processing.
	OutcomeRetryable OutcomeKind = "retryable"
)

// Outcome reports how an attempt ended. Attempt carries the retry_count
// recorded for this attempt, which the runner's backoff policy feeds on.
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	Attempt int
}

// Config bounds the in-attempt poll loop.
type Config struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Orchestrator advances jobs against its collaborators. It performs no
// locking itself; callers hold the per-job lease (see Runner).
type Orchestrator struct {
	jobs    domain.JobRepository
	client  generation.Client
	store   storage.ArtifactStore
	metrics *observability.Collector
	logger  infra.Logger
	cfg     Config
}

func New(jobs domain.JobRepository, client generation.Client, store storage.ArtifactStore, metrics *observability.Collector, logger infra.Logger, cfg Config) *Orchestrator {
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 30
	}
	return &Orchestrator{jobs: jobs, client: client, store: store, metrics: metrics, logger: logger, cfg: cfg}
}

// Advance performs at most one full orchestration attempt for the job.
// Returned errors are store-level failures (including failing to persist a
// terminal state); the job is then still in a state from which a whole
// re-invocation is safe.
func (o *Orchestrator) Advance(ctx context.Context, jobID string) (Outcome, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return Outcome{}, err
	}
	// Terminal jobs are a no-op: duplicate invocations after completion
	// (or a cancellation observed at entry) touch no collaborator.
	if job.Status.Terminal() {
		return Outcome{Kind: outcomeKindFor(job.Status), Reason: job.ErrorMessage, Attempt: job.RetryCount}, nil
	}

	job, err = o.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		// A cancellation may have won the race between the read above and
		// the conditional transition.
		if errors.Is(err, domain.ErrInvalidTransition) {
			if cur, gerr := o.jobs.GetByID(ctx, jobID); gerr == nil && cur.Status.Terminal() {
				return Outcome{Kind: outcomeKindFor(cur.Status), Reason: cur.ErrorMessage, Attempt: cur.RetryCount}, nil
			}
		}
		return Outcome{}, err
	}
	attempt := job.RetryCount
	o.logger.Info().Str("job_id", job.ID).Int("attempt", attempt).Str("model", job.Model).Msg("orchestrator: advancing job")

	if job.ExternalID == "" {
		outcome, done, err := o.submit(ctx, job, attempt)
		if done {
			return outcome, err
		}
	}

	return o.pollUntilDone(ctx, job, attempt)
}

// submit performs the idempotent submission step. The returned done flag
// is false only when submission succeeded and polling should proceed.
func (o *Orchestrator) submit(ctx context.Context, job *domain.Job, attempt int) (Outcome, bool, error) {
	input, err := submitInput(job)
	if err != nil {
		out, ferr := o.fail(ctx, job.ID, attempt, domain.Fatal("submission", err))
		return out, true, ferr
	}

	handle, err := o.client.Submit(ctx, job.Model, input)
	if err != nil {
		out, ferr := o.failOrRetry(ctx, job.ID, attempt, err)
		return out, true, ferr
	}

	// Persisting the handle is the resumption checkpoint: everything after
	// this write may crash and be re-attempted without resubmitting.
	if err := o.jobs.SetExternalID(ctx, job.ID, handle); err != nil {
		return Outcome{}, true, err
	}
	job.ExternalID = handle
	o.logger.Info().Str("job_id", job.ID).Str("external_id", handle).Msg("orchestrator: submitted generation")

	meta := map[string]any{
		"job_id":      job.ID,
		"prompt":      job.Prompt,
		"model":       job.Model,
		"external_id": handle,
		"created_at":  job.CreatedAt.Format(time.RFC3339),
	}
	if len(job.Parameters) > 0 {
		meta["parameters"] = json.RawMessage(job.Parameters)
	}
	if _, err := o.store.PutMetadata(ctx, job.ID, meta); err != nil {
		out, ferr := o.failOrRetry(ctx, job.ID, attempt, err)
		return out, true, ferr
	}
	return Outcome{}, false, nil
}

// pollUntilDone runs the bounded poll loop against the external handle.
func (o *Orchestrator) pollUntilDone(ctx context.Context, job *domain.Job, attempt int) (Outcome, error) {
	for poll := 0; poll < o.cfg.MaxPollAttempts; poll++ {
		if poll > 0 {
			if err := sleepCtx(ctx, o.cfg.PollInterval); err != nil {
				return Outcome{}, err
			}
			// Cancellation is only honored between polls, never mid-call.
			cur, err := o.jobs.GetByID(ctx, job.ID)
			if err != nil {
				return Outcome{}, err
			}
			if cur.Status == domain.JobStatusCancelled {
				o.logger.Info().Str("job_id", job.ID).Msg("orchestrator: job cancelled, stopping poll loop")
				return Outcome{Kind: OutcomeCancelled, Attempt: attempt}, nil
			}
		}

		res, err := o.client.Poll(ctx, job.ExternalID)
		o.metrics.RecordPoll()
		if err != nil {
			return o.failOrRetry(ctx, job.ID, attempt, err)
		}

		switch res.Status {
		case generation.StatusSucceeded:
			if len(res.Output) == 0 {
				// Succeeded with nothing to download is a protocol
				// violation, not something another attempt can fix.
				err := domain.Fatal("external generation", errors.New("generation succeeded but returned no output"))
				return o.fail(ctx, job.ID, attempt, err)
			}
			return o.materialize(ctx, job, attempt, res.Output[0])
		case generation.StatusFailed:
			msg := res.Error
			if msg == "" {
				msg = "generation service reported failure without detail"
			}
			return o.fail(ctx, job.ID, attempt, domain.Fatal("external generation", errors.New(msg)))
		default:
			// Still in progress.
		}
	}

	err := domain.Fatal("timeout", fmt.Errorf("generation did not finish within %d polls", o.cfg.MaxPollAttempts))
	return o.fail(ctx, job.ID, attempt, err)
}

// materialize downloads the artifact, stores it, and completes the job.
// The store write is overwrite-by-key, so a crash between the write and
// the status transition is repaired by simply re-running the attempt.
func (o *Orchestrator) materialize(ctx context.Context, job *domain.Job, attempt int, url string) (Outcome, error) {
	data, err := o.client.Fetch(ctx, url)
	if err != nil {
		return o.failOrRetry(ctx, job.ID, attempt, err)
	}
	path, publicURL, err := o.store.Put(ctx, job.ID, data, "png")
	if err != nil {
		return o.failOrRetry(ctx, job.ID, attempt, err)
	}
	result := domain.Result{FilePath: path, ResultURL: publicURL, SizeBytes: int64(len(data))}
	if err := o.jobs.MarkCompleted(ctx, job.ID, result); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if cur, gerr := o.jobs.GetByID(ctx, job.ID); gerr == nil && cur.Status.Terminal() {
				return Outcome{Kind: outcomeKindFor(cur.Status), Reason: cur.ErrorMessage, Attempt: attempt}, nil
			}
		}
		return Outcome{}, err
	}
	o.logger.Info().Str("job_id", job.ID).Int64("size_bytes", result.SizeBytes).Msg("orchestrator: job completed")
	return Outcome{Kind: OutcomeCompleted, Attempt: attempt}, nil
}

// failOrRetry maps a classified collaborator error to its outcome:
// transient failures bounce back to the invoking layer, everything else
// permanently fails the job.
func (o *Orchestrator) failOrRetry(ctx context.Context, jobID string, attempt int, err error) (Outcome, error) {
	if domain.IsTransient(err) {
		o.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("orchestrator: transient failure")
		return Outcome{Kind: OutcomeRetryable, Reason: err.Error(), Attempt: attempt}, nil
	}
	return o.fail(ctx, jobID, attempt, err)
}

// fail records a terminal failure on the job. Unclassified errors are
// attributed to the internal stage so the message always names a stage.
func (o *Orchestrator) fail(ctx context.Context, jobID string, attempt int, err error) (Outcome, error) {
	msg := err.Error()
	if !domain.IsFatal(err) && !domain.IsTransient(err) {
		msg = "internal: " + msg
	}
	if ferr := o.jobs.MarkFailed(ctx, jobID, msg); ferr != nil {
		if errors.Is(ferr, domain.ErrInvalidTransition) {
			if cur, gerr := o.jobs.GetByID(ctx, jobID); gerr == nil && cur.Status.Terminal() {
				return Outcome{Kind: outcomeKindFor(cur.Status), Reason: cur.ErrorMessage, Attempt: attempt}, nil
			}
		}
		return Outcome{}, ferr
	}
	o.logger.Error().Str("job_id", jobID).Str("error", msg).Msg("orchestrator: job failed")
	return Outcome{Kind: OutcomeFailed, Reason: msg, Attempt: attempt}, nil
}

func submitInput(job *domain.Job) (generation.SubmitInput, error) {
	input := generation.SubmitInput{Prompt: job.Prompt}
	if len(job.Parameters) > 0 {
		if err := json.Unmarshal(job.Parameters, &input); err != nil {
			return generation.SubmitInput{}, fmt.Errorf("decode job parameters: %w", err)
		}
		input.Prompt = job.Prompt
	}
	return input, nil
}

func outcomeKindFor(status domain.JobStatus) OutcomeKind {
	switch status {
	case domain.JobStatusCompleted:
		return OutcomeCompleted
	case domain.JobStatusCancelled:
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
