package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/metrics"
	"github.com/leozw/uptime-dashboard/internal/queue"
)

// Enqueuer pushes a job for every due site. A site that is still waiting in
// the queue is not pushed again until its interval has passed.
type Enqueuer struct {
	repo            *db.Repository
	queue           queue.Queue
	metrics         *metrics.Collector
	logger          *zap.Logger
	defaultInterval time.Duration
	now             func() time.Time

	mu       sync.Mutex
	enqueued map[string]time.Time
}

func NewEnqueuer(repo *db.Repository, q queue.Queue, collector *metrics.Collector, logger *zap.Logger, defaultInterval time.Duration) *Enqueuer {
	if defaultInterval <= 0 {
		defaultInterval = 5 * time.Minute
	}
	return &Enqueuer{
		repo:            repo,
		queue:           q,
		metrics:         collector,
		logger:          logger,
		defaultInterval: defaultInterval,
		now:             time.Now,
		enqueued:        make(map[string]time.Time),
	}
}

// Run calls Tick on every interval until ctx is done.
func (e *Enqueuer) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping enqueuer")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Enqueuer) tick(ctx context.Context) {
	if _, err := e.Tick(ctx); err != nil {
		e.logger.Error("Failed to schedule checks", zap.Error(err))
	}
}

// Tick enqueues the due sites once and returns how many were pushed.
func (e *Enqueuer) Tick(ctx context.Context) (int, error) {
	now := e.now()

	sites, err := e.repo.DueSites(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to get due sites: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pushed := 0
	for _, site := range sites {
		if last, ok := e.enqueued[site.ID]; ok && now.Sub(last) < e.interval(site) {
			continue
		}

		job := queue.NewSiteCheck(site.ID, site.URL, site.Checks)
		if err := e.queue.Push(ctx, job); err != nil {
			e.logger.Warn("Failed to enqueue check",
				zap.String("site_id", site.ID),
				zap.Error(err),
			)
			continue
		}

		e.enqueued[site.ID] = now
		pushed++
		e.logger.Debug("Scheduled check",
			zap.String("site_id", site.ID),
			zap.String("url", site.URL),
		)
	}

	if e.metrics != nil {
		if n, err := e.queue.Length(ctx); err == nil {
			e.metrics.RecordQueueSize(n)
		}
	}

	return pushed, nil
}

func (e *Enqueuer) interval(site *db.Site) time.Duration {
	if site.IntervalSeconds > 0 {
		return time.Duration(site.IntervalSeconds) * time.Second
	}
	return e.defaultInterval
}
