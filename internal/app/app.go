// Package app builds the shared components of the binaries from the
// configuration.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/cache"
	"github.com/leozw/uptime-dashboard/internal/config"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/metrics"
	"github.com/leozw/uptime-dashboard/internal/probe"
	"github.com/leozw/uptime-dashboard/internal/queue"
	"github.com/leozw/uptime-dashboard/internal/scheduler"
	"github.com/leozw/uptime-dashboard/pkg/monitorapi"
)

// NewLogger returns a production logger at the configured level. Gin's
// debug mode switches to the development encoder.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Server.Mode == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zcfg.Level = level
	}

	return zcfg.Build()
}

// OpenDatabase connects and applies the migrations.
func OpenDatabase(cfg *config.Config, logger *zap.Logger) (*sqlx.DB, *db.Repository, error) {
	conn, err := db.NewConnection(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}

	logger.Info("Database ready", zap.String("driver", conn.DriverName()))
	return conn, db.NewRepository(conn), nil
}

// NewRedis returns nil when no Redis URL is configured.
func NewRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.URL == "" {
		return nil
	}
	return cache.NewRedisClient(cfg.Redis.URL)
}

// NewQueue uses Redis when a client is given and an in-process queue
// otherwise.
func NewQueue(cfg *config.Config, client *redis.Client) queue.Queue {
	if client == nil {
		return queue.NewMemoryQueue()
	}
	return queue.NewRedisQueue(client, cfg.Redis.QueueName)
}

// NewAccountCache caches the account details in Redis or in memory.
func NewAccountCache(cfg *config.Config, client *redis.Client, logger *zap.Logger) *cache.Cache[monitorapi.UserDetails] {
	var store cache.Store = cache.NewMemoryStore()
	if client != nil {
		store = cache.NewRedisStore(client, cfg.Redis.CacheKey)
	}
	return cache.New[monitorapi.UserDetails](store, cache.SystemClock{}, cfg.Cache.TTL, logger)
}

// NewRegistry returns a registry with the runtime collectors and the
// dashboard metrics.
func NewRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// NewBackend returns the monitoring API client, or nil when no backend URL
// is configured.
func NewBackend(cfg *config.Config, collector *metrics.Collector) *monitorapi.Client {
	if cfg.Backend.URL == "" {
		return nil
	}

	opts := monitorapi.Options{
		BaseURL:           cfg.Backend.URL,
		APIKey:            cfg.Backend.APIKey,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
	}
	if collector != nil {
		opts.Observe = collector.ObserveBackendRequest
	}
	return monitorapi.NewClient(opts)
}

// NewSource picks the backend when there is one and the local probe
// otherwise.
func NewSource(cfg *config.Config, backend *monitorapi.Client, logger *zap.Logger) scheduler.EnvelopeSource {
	if backend != nil {
		logger.Info("Using monitoring backend", zap.String("url", cfg.Backend.URL))
		return backend
	}

	logger.Info("No monitoring backend configured, using the local probe")
	return probe.New(probe.Options{
		Timeout:      cfg.Probe.Timeout,
		MaxRedirects: cfg.Probe.MaxRedirects,
		DNSServer:    cfg.Probe.DNSServer,
		UserAgent:    cfg.Probe.UserAgent,
	}, logger)
}
