package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/cache"
	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/interval"
	"github.com/leozw/uptime-dashboard/internal/metrics"
	"github.com/leozw/uptime-dashboard/internal/queue"
	"github.com/leozw/uptime-dashboard/internal/scheduler"
	"github.com/leozw/uptime-dashboard/internal/sla"
	"github.com/leozw/uptime-dashboard/internal/timeseries"
	"github.com/leozw/uptime-dashboard/pkg/monitorapi"
)

const accountCacheKey = "account"

// AccountSource returns the account behind the configured API key.
type AccountSource interface {
	UserDetails(ctx context.Context) (*monitorapi.UserDetails, error)
}

// Options wires the handler. Fetcher, Accounts and Queue may be nil; the
// endpoints that need them then answer 503.
type Options struct {
	Repo       *db.Repository
	Source     scheduler.EnvelopeSource
	Fetcher    timeseries.Fetcher
	Accounts   AccountSource
	Cache      *cache.Cache[monitorapi.UserDetails]
	Queue      queue.Queue
	Classifier *checks.Classifier
	Metrics    *metrics.Collector
	Plans      interval.Plans
	Regions    []string
	Logger     *zap.Logger
}

type Handler struct {
	repo       *db.Repository
	source     scheduler.EnvelopeSource
	fetcher    timeseries.Fetcher
	accounts   AccountSource
	cache      *cache.Cache[monitorapi.UserDetails]
	queue      queue.Queue
	classifier *checks.Classifier
	metrics    *metrics.Collector
	plans      interval.Plans
	regions    []string
	logger     *zap.Logger
	sla        *sla.Calculator

	monitoring *interval.Scale
	expiry     *interval.Scale

	loadersMu sync.Mutex
	loaders   map[string]*loaderEntry
}

func NewHandler(opts Options) *Handler {
	if opts.Classifier == nil {
		opts.Classifier = checks.NewClassifier(checks.DefaultThresholds())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New[monitorapi.UserDetails](cache.NewMemoryStore(), cache.SystemClock{}, cache.DefaultTTL, opts.Logger)
	}

	// The built-in partitions are valid.
	monitoring, _ := interval.NewScale(interval.MonitoringPartitions, 0)
	expiry, _ := interval.NewScale(interval.ExpiryPartitions, 0)

	return &Handler{
		repo:       opts.Repo,
		source:     opts.Source,
		fetcher:    opts.Fetcher,
		accounts:   opts.Accounts,
		cache:      opts.Cache,
		queue:      opts.Queue,
		classifier: opts.Classifier,
		metrics:    opts.Metrics,
		plans:      opts.Plans,
		regions:    opts.Regions,
		logger:     opts.Logger,
		sla:        sla.NewCalculator(opts.Repo, opts.Logger),
		monitoring: monitoring,
		expiry:     expiry,
		loaders:    make(map[string]*loaderEntry),
	}
}

// account returns the cached account, loading it when stale or forced.
func (h *Handler) account(ctx context.Context, force bool) (monitorapi.UserDetails, error) {
	return h.cache.Get(ctx, accountCacheKey, force, func(ctx context.Context) (monitorapi.UserDetails, error) {
		user, err := h.accounts.UserDetails(ctx)
		if err != nil {
			return monitorapi.UserDetails{}, err
		}
		return *user, nil
	})
}

// planFloor is the minimum check interval of the current account, 0 when
// it is unknown.
func (h *Handler) planFloor(ctx context.Context) int64 {
	if h.accounts == nil {
		return 0
	}

	user, err := h.account(ctx, false)
	if err != nil {
		h.logger.Warn("Failed to load account for plan floor", zap.Error(err))
		return 0
	}
	return floorFor(user, h.plans)
}

func floorFor(user monitorapi.UserDetails, plans interval.Plans) int64 {
	floor := plans.Floor(strings.ToLower(user.Plan))
	if user.MinIntervalSeconds > floor {
		floor = user.MinIntervalSeconds
	}
	return floor
}

// upstreamError answers for a failed call to the monitoring backend.
func (h *Handler) upstreamError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))

	var apiErr *monitorapi.APIError
	switch {
	case monitorapi.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": checks.Sanitize(apiErr.Message)})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Monitoring backend unavailable"})
	}
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
