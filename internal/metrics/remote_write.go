package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/config"
)

// RemoteWriter periodically pushes everything a Gatherer exposes to a
// Prometheus remote write endpoint such as Mimir.
type RemoteWriter struct {
	config   config.MimirConfig
	gatherer prometheus.Gatherer
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

func NewRemoteWriter(cfg config.MimirConfig, gatherer prometheus.Gatherer, logger *zap.Logger) *RemoteWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = "X-Scope-OrgID"
	}

	return &RemoteWriter{
		config:   cfg,
		gatherer: gatherer,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

// Start flushes on every interval until ctx is done. It returns at once
// when no URL is configured.
func (w *RemoteWriter) Start(ctx context.Context) {
	if w.config.URL == "" {
		w.logger.Info("Remote write disabled")
		return
	}

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

// Flush gathers once and sends the samples in batches.
func (w *RemoteWriter) Flush(ctx context.Context) error {
	mfs, err := w.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	series := toTimeSeries(mfs, w.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	for i := 0; i < len(series); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(series) {
			end = len(series)
		}

		if err := w.sendBatch(ctx, series[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	w.logger.Debug("Remote write flushed", zap.Int("series", len(series)))
	return nil
}

func toTimeSeries(mfs []*dto.MetricFamily, timestamp int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries

	add := func(name string, labels []prompb.Label, value float64, extra ...prompb.Label) {
		ls := make([]prompb.Label, 0, len(labels)+len(extra)+1)
		ls = append(ls, prompb.Label{Name: "__name__", Value: name})
		ls = append(ls, labels...)
		ls = append(ls, extra...)
		sort.Slice(ls, func(i, j int) bool { return ls[i].Name < ls[j].Name })

		out = append(out, prompb.TimeSeries{
			Labels:  ls,
			Samples: []prompb.Sample{{Value: value, Timestamp: timestamp}},
		})
	}

	for _, mf := range mfs {
		name := mf.GetName()
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label))
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				add(name, labels, m.Counter.GetValue())
			case dto.MetricType_GAUGE:
				add(name, labels, m.Gauge.GetValue())
			case dto.MetricType_HISTOGRAM:
				hist := m.Histogram
				for _, bucket := range hist.Bucket {
					add(name+"_bucket", labels, float64(bucket.GetCumulativeCount()),
						prompb.Label{Name: "le", Value: fmt.Sprintf("%g", bucket.GetUpperBound())})
				}
				add(name+"_bucket", labels, float64(hist.GetSampleCount()),
					prompb.Label{Name: "le", Value: "+Inf"})
				add(name+"_sum", labels, hist.GetSampleSum())
				add(name+"_count", labels, float64(hist.GetSampleCount()))
			}
		}
	}

	return out
}

func (w *RemoteWriter) sendBatch(ctx context.Context, series []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{Timeseries: series}

	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL+"/api/v1/push", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if w.config.TenantID != "" {
		httpReq.Header.Set(w.config.TenantHeader, w.config.TenantID)
	}
	if w.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.config.AuthToken)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote write failed with status %d", resp.StatusCode)
	}

	return nil
}
