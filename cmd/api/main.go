package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/api"
	"github.com/leozw/uptime-dashboard/internal/api/handlers"
	"github.com/leozw/uptime-dashboard/internal/app"
	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/config"
	"github.com/leozw/uptime-dashboard/internal/metrics"
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

	// Database
	database, repo, err := app.OpenDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	// Redis is optional
	redisClient := app.NewRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry, collector := app.NewRegistry()
	backend := app.NewBackend(cfg, collector)

	opts := handlers.Options{
		Repo:       repo,
		Source:     app.NewSource(cfg, backend, logger),
		Cache:      app.NewAccountCache(cfg, redisClient, logger),
		Queue:      app.NewQueue(cfg, redisClient),
		Classifier: checks.NewClassifier(cfg.Thresholds),
		Metrics:    collector,
		Plans:      cfg.PlanFloors(),
		Regions:    cfg.Regions,
		Logger:     logger,
	}
	if backend != nil {
		opts.Fetcher = backend
		opts.Accounts = backend
	}

	server := api.NewServer(cfg, handlers.NewHandler(opts), registry, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go metrics.NewRemoteWriter(cfg.Mimir, registry, logger).Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
