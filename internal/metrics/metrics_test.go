package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/config"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/timeseries"
)

func ptr(v float64) *float64 { return &v }

func testEnvelope(t *testing.T) *checks.Envelope {
	t.Helper()
	env, err := checks.ParseEnvelope([]byte(`{"result":{"summary":{"ok":true},"details":{
		"ssl":{"ok":true,"meta":{"daysUntilExpiry":12}},
		"domain":{"ok":true,"meta":{"domainDays":200}},
		"lighthouse":{"ok":true,"meta":{"scores":{"performance":45,"seo":99}}},
		"broken_links":{"ok":true,"meta":{"broken":3,"redirected":1}},
		"mixed_content":{"ok":true,"meta":{"count":2}}
	}}}`))
	require.NoError(t, err)
	return env
}

func TestCollector_RecordSiteCheck(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	site := &db.Site{ID: "s1", Name: "shop"}
	env := testEnvelope(t)
	results := checks.ClassifyAll(env)

	c.RecordSiteCheck(site, results, env, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkStatus.WithLabelValues("s1", "shop", "ssl")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.checkStatus.WithLabelValues("s1", "shop", "domain")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.sslDaysUntilExpiry.WithLabelValues("s1", "shop")))
	assert.Equal(t, 200.0, testutil.ToFloat64(c.domainDaysUntilExpiry.WithLabelValues("s1", "shop")))
	assert.Equal(t, 45.0, testutil.ToFloat64(c.lighthouseMinScore.WithLabelValues("s1", "shop")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.brokenLinks.WithLabelValues("s1", "shop")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.mixedContentItems.WithLabelValues("s1", "shop")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.checksTotal.WithLabelValues("lighthouse", "warning"))+
		testutil.ToFloat64(c.checksTotal.WithLabelValues("ssl", "warning"))+
		testutil.ToFloat64(c.checksTotal.WithLabelValues("broken_links", "warning")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.checkDuration))
}

func TestCollector_RecordSiteCheck_NoEnvelope(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	results := map[checks.Kind]checks.Result{
		checks.KindUptime: checks.NewClassifier(checks.DefaultThresholds()).Failure(checks.KindUptime, errors.New("timeout")),
	}
	c.RecordSiteCheck(&db.Site{ID: "s2", Name: "blog"}, results, nil, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.checkStatus.WithLabelValues("s2", "blog", "uptime")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.sslDaysUntilExpiry))
}

func TestCollector_RecordResponseTimes(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordResponseTimes("m1", map[string]timeseries.Series{
		"us-east": {Avg: ptr(120), Min: ptr(80), Max: ptr(300)},
		"eu-west": {},
	})

	assert.Equal(t, 120.0, testutil.ToFloat64(c.regionResponseTime.WithLabelValues("m1", "us-east", "avg")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.regionResponseTime.WithLabelValues("m1", "us-east", "max")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.regionResponseTime))
}

func TestCollector_BackendAndQueue(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.ObserveBackendRequest("/user", 100*time.Millisecond, nil)
	c.ObserveBackendRequest("/user", time.Second, errors.New("boom"))
	c.RecordQueueSize(7)

	assert.Equal(t, 2, testutil.CollectAndCount(c.backendRequestDuration))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueSize))
}

func TestRemoteWriter_Flush(t *testing.T) {
	var mu sync.Mutex
	var requests []*prompb.WriteRequest
	var tenants []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/push", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		data, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var req prompb.WriteRequest
		require.NoError(t, req.Unmarshal(data))

		mu.Lock()
		requests = append(requests, &req)
		tenants = append(tenants, r.Header.Get("X-Scope-OrgID"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordQueueSize(3)
	c.ObserveBackendRequest("/healthcheck", 200*time.Millisecond, nil)

	w := NewRemoteWriter(config.MimirConfig{
		URL:       srv.URL,
		TenantID:  "team-a",
		AuthToken: "token",
		BatchSize: 5,
	}, reg, zap.NewNop())

	require.NoError(t, w.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()

	// 1 gauge + 9 buckets + +Inf + sum + count = 13 series in batches of 5
	require.Len(t, requests, 3)
	assert.Equal(t, []string{"team-a", "team-a", "team-a"}, tenants)

	names := map[string]int{}
	for _, req := range requests {
		for _, ts := range req.Timeseries {
			for i := 1; i < len(ts.Labels); i++ {
				assert.Less(t, ts.Labels[i-1].Name, ts.Labels[i].Name)
			}
			for _, l := range ts.Labels {
				if l.Name == "__name__" {
					names[l.Value]++
				}
			}
		}
	}
	assert.Equal(t, 1, names["uptime_queue_size"])
	assert.Equal(t, 10, names["uptime_backend_request_duration_seconds_bucket"])
	assert.Equal(t, 1, names["uptime_backend_request_duration_seconds_count"])
}

func TestRemoteWriter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordQueueSize(1)

	w := NewRemoteWriter(config.MimirConfig{URL: srv.URL}, reg, zap.NewNop())
	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 400"))
}

func TestRemoteWriter_Disabled(t *testing.T) {
	w := NewRemoteWriter(config.MimirConfig{}, prometheus.NewRegistry(), zap.NewNop())
	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return without a URL")
	}
}
