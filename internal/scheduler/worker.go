package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/queue"
)

const popRetryDelay = time.Second

type Worker struct {
	id         int
	queue      queue.Queue
	processor  *Processor
	popTimeout time.Duration
	logger     *zap.Logger
}

func NewWorker(id int, q queue.Queue, processor *Processor, popTimeout time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		id:         id,
		queue:      q,
		processor:  processor,
		popTimeout: popTimeout,
		logger:     logger.With(zap.Int("worker_id", id)),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker stopped")
			return
		}

		job, err := w.queue.Pop(ctx, w.popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				w.logger.Info("Worker stopped")
				return
			}

			w.logger.Error("Failed to pop job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(popRetryDelay):
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	w.logger.Debug("Processing check",
		zap.String("job_id", job.ID),
		zap.String("site_id", job.SiteID),
		zap.Int("kinds", len(job.Kinds)),
	)

	if err := w.processor.Process(ctx, job); err != nil {
		w.logger.Error("Failed to process check",
			zap.Error(err),
			zap.String("site_id", job.SiteID),
		)
	}
}

// Pool runs a fixed number of workers on one queue.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(size int, q queue.Queue, processor *Processor, popTimeout time.Duration, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{workers: make([]*Worker, size)}
	for i := range p.workers {
		p.workers[i] = NewWorker(i, q, processor, popTimeout, logger)
	}
	return p
}

// Run blocks until ctx is done and every worker has returned.
func (p *Pool) Run(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}
	p.wg.Wait()
}
