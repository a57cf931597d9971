package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/cache"
	"studio/internal/infra"
	"studio/internal/materialize"
	"studio/internal/metrics"
	"studio/internal/worker"

	repoadapter "studio/internal/adapter/repo"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	jobCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer jobCache.Close()

	adapters, err := infra.BuildAdapters(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build provider adapters")
	}

	store, err := infra.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialize storage")
	}

	materializer := materialize.New(materialize.Options{
		Logger:          &logger,
		RestrictedHosts: cfg.RestrictedHosts,
		ProxyBaseURL:    cfg.ProxyBaseURL,
	})

	runner, err := worker.New(worker.Options{
		Logger:          logger,
		Jobs:            repoadapter.NewJobRepository(pool),
		Assets:          repoadapter.NewAssetRepository(pool),
		Cache:           jobCache,
		Metrics:         metrics.New(),
		Adapters:        adapters,
		Materializer:    materializer,
		Store:           store,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid configuration")
	}

	logger.Info().Int("adapters", len(adapters)).Msg("worker started")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker stopped")
}
