package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/app"
	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/config"
	"github.com/leozw/uptime-dashboard/internal/metrics"
	"github.com/leozw/uptime-dashboard/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	database, repo, err := app.OpenDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	redisClient := app.NewRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	jobQueue := app.NewQueue(cfg, redisClient)

	registry, collector := app.NewRegistry()
	source := app.NewSource(cfg, app.NewBackend(cfg, collector), logger)

	processor := scheduler.NewProcessor(
		source,
		repo,
		checks.NewClassifier(cfg.Thresholds),
		collector,
		logger,
		cfg.Scheduler.CheckTimeout,
	)
	pool := scheduler.NewPool(cfg.Scheduler.WorkerCount, jobQueue, processor, cfg.Scheduler.PopTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if redisClient != nil {
			pool.Run(ctx)
			return
		}
		// Without Redis nobody else can fill the in-memory queue.
		enqueuer := scheduler.NewEnqueuer(repo, jobQueue, collector, logger, cfg.Scheduler.DefaultInterval)
		scheduler.NewScheduler(enqueuer, pool, cfg.Scheduler.TickInterval, logger).Start(ctx)
	}()

	go metrics.NewRemoteWriter(cfg.Mimir, registry, logger).Start(ctx)

	logger.Info("Worker started", zap.Int("workers", cfg.Scheduler.WorkerCount))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	logger.Info("Worker exited")
}
