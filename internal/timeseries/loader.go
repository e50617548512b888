package timeseries

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by Load when a newer load replaced it.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Fetcher retrieves the response time series of one region.
type Fetcher interface {
	ResponseTime(ctx context.Context, monitorID, region string, from, to time.Time) (Series, error)
}

// Window is one chart request.
type Window struct {
	MonitorID string
	Regions   []string
	From      time.Time
	To        time.Time
}

// Loader fetches every region of a window into an accumulator. Starting a
// new load cancels the previous one.
type Loader struct {
	fetcher     Fetcher
	acc         *Accumulator
	logger      *zap.Logger
	parallelism int

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLoader returns a loader. parallelism <= 1 fetches regions one after
// another.
func NewLoader(fetcher Fetcher, acc *Accumulator, logger *zap.Logger, parallelism int) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		fetcher:     fetcher,
		acc:         acc,
		logger:      logger,
		parallelism: parallelism,
	}
}

// Load fetches all regions of w. Failing regions are logged and recorded in
// the snapshot; they do not abort the others.
func (l *Loader) Load(ctx context.Context, w Window) (Snapshot, error) {
	l.mu.Lock()
	gen := l.acc.Reset(w.Regions)
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	if l.parallelism > 1 {
		l.loadParallel(ctx, gen, w)
	} else {
		l.loadSequential(ctx, gen, w)
	}

	// One read, so the generation check and the data agree.
	snap := l.acc.Snapshot()
	if snap.Generation != gen {
		return Snapshot{}, ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	return snap, nil
}

func (l *Loader) loadSequential(ctx context.Context, gen Generation, w Window) {
	for _, region := range w.Regions {
		if ctx.Err() != nil {
			return
		}
		l.fetchRegion(ctx, gen, w, region)
	}
}

func (l *Loader) loadParallel(ctx context.Context, gen Generation, w Window) {
	var g errgroup.Group
	g.SetLimit(l.parallelism)

	for _, region := range w.Regions {
		region := region
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			l.fetchRegion(ctx, gen, w, region)
			return nil
		})
	}

	_ = g.Wait()
}

func (l *Loader) fetchRegion(ctx context.Context, gen Generation, w Window, region string) {
	start := time.Now()
	series, err := l.fetcher.ResponseTime(ctx, w.MonitorID, region, w.From, w.To)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("Failed to load region response time",
			zap.String("monitor_id", w.MonitorID),
			zap.String("region", region),
			zap.Error(err))
		l.acc.Fail(gen, region, err)
		return
	}

	if !l.acc.Add(gen, region, series) {
		l.logger.Debug("Discarded stale region result",
			zap.String("monitor_id", w.MonitorID),
			zap.String("region", region))
		return
	}

	l.logger.Debug("Region response time loaded",
		zap.String("region", region),
		zap.Int("points", len(series.ChartData)),
		zap.Duration("duration", time.Since(start)))
}
