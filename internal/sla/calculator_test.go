package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/histogram"
)

type fakeSource struct {
	samples []histogram.Sample
	err     error
	since   time.Time
}

func (f *fakeSource) UptimeSamples(_ context.Context, _ string, since time.Time) ([]histogram.Sample, error) {
	f.since = since
	return f.samples, f.err
}

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int, up bool) histogram.Sample {
	return histogram.Sample{CheckedAt: base.Add(time.Duration(minutes) * time.Minute), Up: up}
}

func TestCalculate(t *testing.T) {
	samples := []histogram.Sample{
		at(-5, false), // before the period
		at(0, true),
		at(10, false),
		at(15, false),
		at(30, true),
		at(40, true),
	}

	r := Calculate("site-1", samples, base, base.Add(time.Hour), 99)

	assert.Equal(t, 5, r.TotalChecks)
	assert.Equal(t, 3, r.SuccessfulChecks)
	assert.Equal(t, 2, r.FailedChecks)
	require.NotNil(t, r.UptimePercentage)
	assert.InDelta(t, 60.0, *r.UptimePercentage, 1e-9)
	assert.Equal(t, 20, r.DowntimeMinutes)
	assert.False(t, r.TargetMet)
	assert.Equal(t, 99.0, r.Target)
}

func TestCalculate_OpenDowntime(t *testing.T) {
	r := Calculate("site-1", []histogram.Sample{at(0, true), at(50, false)}, base, base.Add(time.Hour), 0)

	assert.Equal(t, 10, r.DowntimeMinutes)
	assert.Equal(t, DefaultTarget, r.Target)
}

func TestCalculate_NoChecks(t *testing.T) {
	r := Calculate("site-1", nil, base, base.Add(time.Hour), 99.5)

	assert.Zero(t, r.TotalChecks)
	assert.Nil(t, r.UptimePercentage)
	assert.True(t, r.TargetMet)
	assert.Zero(t, r.DowntimeMinutes)
}

func TestCalculator_Report(t *testing.T) {
	source := &fakeSource{samples: []histogram.Sample{at(0, true), at(5, true)}}
	calc := NewCalculator(source, zap.NewNop())

	r, err := calc.Report(context.Background(), "site-1", base, base.Add(time.Hour), 99.9)
	require.NoError(t, err)
	require.NotNil(t, r.UptimePercentage)
	assert.Equal(t, 100.0, *r.UptimePercentage)
	assert.True(t, r.TargetMet)
	assert.True(t, base.Equal(source.since))

	_, err = calc.Report(context.Background(), "site-1", base, base, 99.9)
	assert.Error(t, err)

	source.err = errors.New("db down")
	_, err = calc.Report(context.Background(), "site-1", base, base.Add(time.Hour), 99.9)
	assert.ErrorContains(t, err, "db down")
}

func TestCalculator_CurrentMonth(t *testing.T) {
	source := &fakeSource{}
	calc := NewCalculator(source, zap.NewNop())

	now := time.Date(2024, 5, 17, 13, 30, 0, 0, time.UTC)
	r, err := calc.CurrentMonth(context.Background(), "site-1", now, 0)
	require.NoError(t, err)
	assert.True(t, base.Equal(r.PeriodStart))
	assert.True(t, now.Equal(r.PeriodEnd))
}
