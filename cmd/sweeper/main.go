package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
	"mediagen/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single reclamation pass and exit")
	flag.Parse()

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
		logger.Fatal().Err(err).Msg("sweeper: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(runner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: failed to configure storage")
	}

	sweeper := orchestrator.NewSweeper(jobs, fileStore, nil, logger, cfg.RetentionAge, cfg.SweepBatchSize)

	if *once {
		n, err := sweeper.Sweep(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("sweeper: pass failed")
		}
		logger.Info().Int("reclaimed", n).Msg("sweeper: done")
		return
	}

	sweeper.Run(ctx, cfg.SweepInterval)
	logger.Info().Msg("sweeper: stopped")
}
