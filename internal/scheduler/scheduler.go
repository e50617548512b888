package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs an enqueuer and a worker pool in one process.
type Scheduler struct {
	enqueuer *Enqueuer
	pool     *Pool
	tick     time.Duration
	logger   *zap.Logger
}

func NewScheduler(enqueuer *Enqueuer, pool *Pool, tick time.Duration, logger *zap.Logger) *Scheduler {
	if tick <= 0 {
		tick = 10 * time.Second
	}
	return &Scheduler{
		enqueuer: enqueuer,
		pool:     pool,
		tick:     tick,
		logger:   logger,
	}
}

// Start blocks until ctx is done and all workers have drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		zap.Int("worker_count", len(s.pool.workers)),
		zap.Duration("tick", s.tick),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.enqueuer.Run(ctx, s.tick)
	}()

	wg.Wait()
	s.logger.Info("Scheduler stopped")
}
