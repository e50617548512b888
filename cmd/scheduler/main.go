package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/app"
	"github.com/leozw/uptime-dashboard/internal/config"
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

	redisClient := app.NewRedis(cfg)
	if redisClient == nil {
		logger.Fatal("The scheduler needs redis.url; run the worker alone for single process mode")
	}
	defer redisClient.Close()

	database, repo, err := app.OpenDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	_, collector := app.NewRegistry()
	enqueuer := scheduler.NewEnqueuer(repo, app.NewQueue(cfg, redisClient), collector, logger, cfg.Scheduler.DefaultInterval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		enqueuer.Run(ctx, cfg.Scheduler.TickInterval)
	}()

	logger.Info("Scheduler started", zap.Duration("tick", cfg.Scheduler.TickInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	cancel()
	<-done
	logger.Info("Scheduler stopped")
}
