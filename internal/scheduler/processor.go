package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/metrics"
	"github.com/leozw/uptime-dashboard/internal/queue"
)

// EnvelopeSource produces a raw healthcheck envelope. Both the monitoring
// API client and the local probe satisfy it.
type EnvelopeSource interface {
	Healthcheck(ctx context.Context, target string, kinds []checks.Kind) (*checks.Envelope, error)
}

// Processor runs one queued site check end to end: fetch, classify,
// persist, record metrics.
type Processor struct {
	source     EnvelopeSource
	repo       *db.Repository
	classifier *checks.Classifier
	metrics    *metrics.Collector
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewProcessor(source EnvelopeSource, repo *db.Repository, classifier *checks.Classifier, collector *metrics.Collector, logger *zap.Logger, timeout time.Duration) *Processor {
	return &Processor{
		source:     source,
		repo:       repo,
		classifier: classifier,
		metrics:    collector,
		logger:     logger,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Process handles one job. A job for a deleted site is dropped without
// error; a failed fetch is stored as an error result for every requested
// kind.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	start := p.now()

	site, err := p.repo.GetSite(ctx, job.SiteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			p.logger.Warn("Dropping job for unknown site",
				zap.String("job_id", job.ID),
				zap.String("site_id", job.SiteID),
			)
			return nil
		}
		return fmt.Errorf("failed to load site: %w", err)
	}

	kinds := job.Kinds
	if len(kinds) == 0 {
		kinds = site.Checks
	}
	if len(kinds) == 0 {
		kinds = []checks.Kind{checks.KindUptime}
	}

	target := job.URL
	if target == "" {
		target = site.URL
	}

	results, env := p.run(ctx, target, kinds)
	duration := p.now().Sub(start)
	checkedAt := p.now().UTC()

	records := db.RecordsFromResults(site.ID, results, float64(duration.Milliseconds()), checkedAt)
	if err := p.repo.SaveCheckRecords(ctx, site.ID, records, checkedAt); err != nil {
		return fmt.Errorf("failed to save check records: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordSiteCheck(site, results, env, duration)
	}

	p.logger.Debug("Check completed",
		zap.String("site_id", site.ID),
		zap.String("status", string(checks.Overall(results))),
		zap.Int("results", len(records)),
		zap.Duration("duration", duration),
	)
	return nil
}

func (p *Processor) run(ctx context.Context, target string, kinds []checks.Kind) (map[checks.Kind]checks.Result, *checks.Envelope) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	env, err := p.source.Healthcheck(ctx, target, kinds)
	if err != nil {
		p.logger.Warn("Healthcheck failed",
			zap.String("target", target),
			zap.Error(err),
		)

		results := make(map[checks.Kind]checks.Result, len(kinds))
		for _, kind := range kinds {
			results[kind] = p.classifier.Failure(kind, err)
		}
		return results, nil
	}

	return p.classifier.ClassifyAll(env), env
}
