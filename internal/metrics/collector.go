package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/timeseries"
)

type Collector struct {
	// Check results
	checkStatus   *prometheus.GaugeVec
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	lastCheck     *prometheus.GaugeVec

	// Per kind values
	sslDaysUntilExpiry    *prometheus.GaugeVec
	domainDaysUntilExpiry *prometheus.GaugeVec
	lighthouseMinScore    *prometheus.GaugeVec
	brokenLinks           *prometheus.GaugeVec
	mixedContentItems     *prometheus.GaugeVec

	// Response times
	regionResponseTime *prometheus.GaugeVec

	// System
	backendRequestDuration *prometheus.HistogramVec
	queueSize              prometheus.Gauge
}

// NewCollector registers the dashboard metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		checkStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_check_status",
				Help: "Status of the last check: 0 success, 1 warning, 2 error",
			},
			[]string{"site_id", "site_name", "kind"},
		),

		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptime_checks_total",
				Help: "Total number of classified checks",
			},
			[]string{"kind", "status"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uptime_check_duration_seconds",
				Help:    "Duration of a full site check in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"site_id"},
		),

		lastCheck: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_last_check_timestamp_seconds",
				Help: "Unix time of the last completed check",
			},
			[]string{"site_id", "site_name"},
		),

		sslDaysUntilExpiry: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_ssl_days_until_expiry",
				Help: "Days until the SSL certificate expires",
			},
			[]string{"site_id", "site_name"},
		),

		domainDaysUntilExpiry: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_domain_days_until_expiry",
				Help: "Days until the domain registration expires",
			},
			[]string{"site_id", "site_name"},
		),

		lighthouseMinScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_lighthouse_min_score",
				Help: "Lowest Lighthouse category score (0-100)",
			},
			[]string{"site_id", "site_name"},
		),

		brokenLinks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_broken_links",
				Help: "Broken links found by the last crawl",
			},
			[]string{"site_id", "site_name"},
		),

		mixedContentItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_mixed_content_items",
				Help: "Mixed content items found by the last crawl",
			},
			[]string{"site_id", "site_name"},
		),

		regionResponseTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uptime_region_response_time_ms",
				Help: "Response time statistics per region in milliseconds",
			},
			[]string{"monitor_id", "region", "stat"},
		),

		backendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uptime_backend_request_duration_seconds",
				Help:    "Duration of monitoring API requests in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "outcome"},
		),

		queueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uptime_queue_size",
				Help: "Jobs waiting in the check queue",
			},
		),
	}
}

// RecordSiteCheck records one classified run of a site's checks. env may be
// nil when the envelope could not be fetched.
func (c *Collector) RecordSiteCheck(site *db.Site, results map[checks.Kind]checks.Result, env *checks.Envelope, duration time.Duration) {
	siteLabels := prometheus.Labels{
		"site_id":   site.ID,
		"site_name": site.Name,
	}

	for kind, res := range results {
		c.checkStatus.With(prometheus.Labels{
			"site_id":   site.ID,
			"site_name": site.Name,
			"kind":      string(kind),
		}).Set(res.Status.Severity())

		c.checksTotal.With(prometheus.Labels{
			"kind":   string(kind),
			"status": string(res.Status),
		}).Inc()
	}

	c.checkDuration.With(prometheus.Labels{"site_id": site.ID}).Observe(duration.Seconds())
	c.lastCheck.With(siteLabels).SetToCurrentTime()

	if env == nil {
		return
	}

	if p := env.Payload(checks.KindSSL); p.Present {
		if days, ok := p.Meta.Float("daysUntilExpiry"); ok {
			c.sslDaysUntilExpiry.With(siteLabels).Set(days)
		}
	}

	if p := env.Payload(checks.KindDomain); p.Present {
		if days, ok := p.Meta.Float("domainDays"); ok {
			c.domainDaysUntilExpiry.With(siteLabels).Set(days)
		}
	}

	if p := env.Payload(checks.KindLighthouse); p.Present {
		if score, ok := checks.MinLighthouseScore(p.Meta); ok {
			c.lighthouseMinScore.With(siteLabels).Set(score)
		}
	}

	if p := env.Payload(checks.KindBrokenLinks); p.Present {
		if n, ok := p.Meta.Count("broken"); ok {
			c.brokenLinks.With(siteLabels).Set(float64(n))
		}
	}

	if p := env.Payload(checks.KindMixedContent); p.Present {
		n, ok := p.Meta.Count("mixedCount")
		if !ok {
			n, ok = p.Meta.Count("count")
		}
		if ok {
			c.mixedContentItems.With(siteLabels).Set(float64(n))
		}
	}
}

// RecordResponseTimes exports the avg/min/max of every region that has them.
func (c *Collector) RecordResponseTimes(monitorID string, series map[string]timeseries.Series) {
	for region, s := range series {
		for stat, v := range map[string]*float64{"avg": s.Avg, "min": s.Min, "max": s.Max} {
			if v == nil {
				continue
			}
			c.regionResponseTime.With(prometheus.Labels{
				"monitor_id": monitorID,
				"region":     region,
				"stat":       stat,
			}).Set(*v)
		}
	}
}

// ObserveBackendRequest matches the monitoring API client's Observe hook.
func (c *Collector) ObserveBackendRequest(endpoint string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.backendRequestDuration.With(prometheus.Labels{
		"endpoint": endpoint,
		"outcome":  outcome,
	}).Observe(elapsed.Seconds())
}

func (c *Collector) RecordQueueSize(n int64) {
	c.queueSize.Set(float64(n))
}
