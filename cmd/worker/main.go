package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/domain"
	"mediagen/internal/generation"
	"mediagen/internal/infra"
	"mediagen/internal/lease"
	"mediagen/internal/observability"
	"mediagen/internal/orchestrator"
	"mediagen/internal/storage"
)

const claimBatchSize = 10

type jobWorker struct {
	ctx    context.Context
	jobs   domain.JobRepository
	runner *orchestrator.Runner
	logger infra.Logger
	claim  time.Duration
	stall  time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	sqlRunner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(sqlRunner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure lease locker")
	}

	client := newGenerationClient(cfg, logger)

	registry := prometheus.NewRegistry()
	metrics := observability.NewCollector(registry)
	go serveMetrics(cfg, registry, logger)

	orch := orchestrator.New(jobs, client, fileStore, metrics, logger, orchestrator.Config{
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.MaxPollAttempts,
	})
	policy := orchestrator.Policy{
		BaseDelay:  cfg.RetryBaseDelay,
		Factor:     cfg.RetryBackoffFactor,
		MaxDelay:   cfg.RetryMaxDelay,
		MaxRetries: cfg.MaxRetryAttempts,
	}
	runner := orchestrator.NewRunner(orch, jobs, locker, policy, metrics, logger, cfg.LeaseTTL)

	worker := &jobWorker{
		ctx:    ctx,
		jobs:   jobs,
		runner: runner,
		logger: logger,
		claim:  cfg.ClaimInterval,
		stall:  cfg.StallThreshold,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func newGenerationClient(cfg *infra.Config, logger infra.Logger) generation.Client {
	switch cfg.GenerationProvider {
	case "replicate":
		return generation.NewReplicateClient(generation.ReplicateOptions{
			BaseURL:  cfg.ReplicateBaseURL,
			APIToken: cfg.ReplicateAPIToken,
			Timeout:  cfg.SubmitTimeout,
		})
	default:
		logger.Warn().Str("provider", cfg.GenerationProvider).Msg("worker: using mock generation provider")
		return generation.NewMockClient(generation.MockOptions{PollsUntilDone: 2})
	}
}

func newLocker(ctx context.Context, cfg *infra.Config, logger infra.Logger) (lease.Locker, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("worker: REDIS_URL not set, using in-process lease locker")
		return lease.NewMemoryLocker(), nil
	}
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return lease.NewRedisLocker(rdb, logger), nil
}

func serveMetrics(cfg *infra.Config, registry *prometheus.Registry, logger infra.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	addr := ":" + getEnv("WORKER_METRICS_PORT", "9090")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("worker: metrics listener failed")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		ids, err := w.claimJobs()
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: failed to list runnable jobs")
			w.wait()
			continue
		}
		if len(ids) == 0 {
			w.wait()
			continue
		}

		for _, id := range ids {
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			default:
			}
			w.handleJob(id)
		}
	}
}

// claimJobs lists pending jobs plus processing jobs untouched for longer
// than the stall threshold, whose previous worker is presumed dead.
func (w *jobWorker) claimJobs() ([]string, error) {
	return w.jobs.ListRunnable(w.ctx, time.Now().Add(-w.stall), claimBatchSize)
}

func (w *jobWorker) handleJob(id string) {
	w.logger.Info().Str("job_id", id).Msg("worker: picked job")
	out, err := w.runner.Process(w.ctx, id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrLeaseHeld) {
			w.logger.Debug().Str("job_id", id).Msg("worker: job leased elsewhere, skipping")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		// Store-level failure; the stalled-processing query re-surfaces
		// the job once the stall threshold passes.
		w.logger.Error().Err(err).Str("job_id", id).Msg("worker: job attempt aborted")
		return
	}
	w.logger.Info().Str("job_id", id).Str("outcome", string(out.Kind)).Int("attempts", out.Attempt).Msg("worker: job finished")
}

func (w *jobWorker) wait() {
	select {
	case <-w.ctx.Done():
	case <-time.After(w.claim):
	}
}
