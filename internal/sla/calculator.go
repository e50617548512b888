package sla

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/histogram"
)

// DefaultTarget is the uptime objective used when none is given.
const DefaultTarget = 99.9

// SampleSource returns the uptime outcomes of a site since a time, oldest
// first.
type SampleSource interface {
	UptimeSamples(ctx context.Context, siteID string, since time.Time) ([]histogram.Sample, error)
}

// Report summarizes the availability of one site over a period.
type Report struct {
	SiteID           string    `json:"site_id"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	TotalChecks      int       `json:"total_checks"`
	SuccessfulChecks int       `json:"successful_checks"`
	FailedChecks     int       `json:"failed_checks"`
	// UptimePercentage is nil when nothing was checked in the period.
	UptimePercentage *float64 `json:"uptime_percentage"`
	DowntimeMinutes  int      `json:"downtime_minutes"`
	Target           float64  `json:"target"`
	TargetMet        bool     `json:"target_met"`
}

type Calculator struct {
	source SampleSource
	logger *zap.Logger
}

func NewCalculator(source SampleSource, logger *zap.Logger) *Calculator {
	return &Calculator{
		source: source,
		logger: logger,
	}
}

// Report computes the availability of a site between start and end.
func (c *Calculator) Report(ctx context.Context, siteID string, start, end time.Time, target float64) (*Report, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("period end %s is not after start %s", end, start)
	}

	samples, err := c.source.UptimeSamples(ctx, siteID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get uptime samples: %w", err)
	}

	report := Calculate(siteID, samples, start, end, target)
	c.logger.Debug("Computed uptime report",
		zap.String("site_id", siteID),
		zap.Int("checks", report.TotalChecks),
		zap.Int("downtime_minutes", report.DowntimeMinutes),
	)
	return report, nil
}

// CurrentMonth reports from the first of now's month up to now.
func (c *Calculator) CurrentMonth(ctx context.Context, siteID string, now time.Time, target float64) (*Report, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return c.Report(ctx, siteID, start, now, target)
}

// Calculate builds a report from samples sorted by time. Samples outside
// [start, end) are ignored. A down streak still open at the last sample
// counts as downtime until end.
func Calculate(siteID string, samples []histogram.Sample, start, end time.Time, target float64) *Report {
	if target <= 0 || target > 100 {
		target = DefaultTarget
	}

	report := &Report{
		SiteID:      siteID,
		PeriodStart: start,
		PeriodEnd:   end,
		Target:      target,
		TargetMet:   true,
	}

	var downtime time.Duration
	var downSince time.Time
	inDowntime := false

	for _, s := range samples {
		if s.CheckedAt.Before(start) || !s.CheckedAt.Before(end) {
			continue
		}

		report.TotalChecks++
		if s.Up {
			report.SuccessfulChecks++
			if inDowntime {
				inDowntime = false
				downtime += s.CheckedAt.Sub(downSince)
			}
			continue
		}

		report.FailedChecks++
		if !inDowntime {
			inDowntime = true
			downSince = s.CheckedAt
		}
	}

	if inDowntime {
		downtime += end.Sub(downSince)
	}
	report.DowntimeMinutes = int(downtime / time.Minute)

	if report.TotalChecks > 0 {
		pct := float64(report.SuccessfulChecks) / float64(report.TotalChecks) * 100
		report.UptimePercentage = &pct
		report.TargetMet = pct >= target
	}

	return report
}
