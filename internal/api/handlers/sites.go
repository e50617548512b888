package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/db"
	"github.com/leozw/uptime-dashboard/internal/histogram"
	"github.com/leozw/uptime-dashboard/internal/queue"
)

const defaultSiteInterval = 300

type SiteRequest struct {
	Name            string   `json:"name" binding:"required,min=1,max=255"`
	URL             string   `json:"url" binding:"required"`
	Checks          []string `json:"checks"`
	IntervalSeconds int64    `json:"interval_seconds"`
	Enabled         *bool    `json:"enabled"`
}

// apply validates req and copies it onto site. The interval is clamped to
// the slider range and the account's plan floor.
func (h *Handler) apply(c *gin.Context, req *SiteRequest, site *db.Site) error {
	target, err := normalizeURL(req.URL)
	if err != nil {
		return err
	}
	kinds, err := parseKinds(req.Checks)
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		kinds = []checks.Kind{checks.KindUptime}
	}

	seconds := req.IntervalSeconds
	if seconds <= 0 {
		seconds = defaultSiteInterval
	}

	site.Name = req.Name
	site.URL = target
	site.Checks = kinds
	site.IntervalSeconds = h.monitoring.WithFloor(h.planFloor(c.Request.Context())).Clamp(seconds)
	if req.Enabled != nil {
		site.Enabled = *req.Enabled
	}
	return nil
}

func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.repo.ListSites(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sites"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sites": sites,
		"total": len(sites),
	})
}

func (h *Handler) CreateSite(c *gin.Context) {
	var req SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site := &db.Site{Enabled: true}
	if err := h.apply(c, &req, site); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.CreateSite(c.Request.Context(), site); err != nil {
		h.logger.Error("Failed to create site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		return
	}

	h.logger.Info("Site created",
		zap.String("site_id", site.ID),
		zap.String("url", site.URL),
	)

	c.JSON(http.StatusCreated, site)
}

// loadSite writes the 404/500 answer itself and returns nil on failure.
func (h *Handler) loadSite(c *gin.Context) *db.Site {
	site, err := h.repo.GetSite(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return nil
		}
		h.logger.Error("Failed to get site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil
	}
	return site
}

func (h *Handler) GetSite(c *gin.Context) {
	site := h.loadSite(c)
	if site == nil {
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handler) UpdateSite(c *gin.Context) {
	site := h.loadSite(c)
	if site == nil {
		return
	}

	var req SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.apply(c, &req, site); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.UpdateSite(c.Request.Context(), site); err != nil {
		h.logger.Error("Failed to update site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update site"})
		return
	}

	c.JSON(http.StatusOK, site)
}

func (h *Handler) DeleteSite(c *gin.Context) {
	siteID := c.Param("id")

	if err := h.repo.DeleteSite(c.Request.Context(), siteID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return
		}
		h.logger.Error("Failed to delete site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete site"})
		return
	}

	h.logger.Info("Site deleted", zap.String("site_id", siteID))
	c.JSON(http.StatusOK, gin.H{"message": "Site deleted successfully"})
}

// TriggerCheck queues an immediate check ahead of the scheduled ones.
func (h *Handler) TriggerCheck(c *gin.Context) {
	if h.queue == nil {
		unavailable(c, "Check queue")
		return
	}

	site := h.loadSite(c)
	if site == nil {
		return
	}

	job := queue.NewSiteCheck(site.ID, site.URL, site.Checks)
	job.Priority = 1

	if err := h.queue.Push(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to queue check", zap.Error(err), zap.String("site_id", site.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue check"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// SiteResults returns the latest record of every kind, or the history of
// one kind with ?kind=.
func (h *Handler) SiteResults(c *gin.Context) {
	site := h.loadSite(c)
	if site == nil {
		return
	}
	ctx := c.Request.Context()

	if kindParam := c.Query("kind"); kindParam != "" {
		kind, err := checks.ParseKind(kindParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if limit < 1 || limit > 1000 {
			limit = 100
		}

		history, err := h.repo.CheckHistory(ctx, site.ID, kind, limit)
		if err != nil {
			h.logger.Error("Failed to get check history", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get results"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"site_id": site.ID,
			"kind":    kind,
			"results": history,
		})
		return
	}

	latest, err := h.repo.LatestCheckRecords(ctx, site.ID)
	if err != nil {
		h.logger.Error("Failed to get latest results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get results"})
		return
	}

	statuses := make([]checks.Status, len(latest))
	for i, r := range latest {
		statuses[i] = r.Status
	}

	c.JSON(http.StatusOK, gin.H{
		"site_id":         site.ID,
		"overall":         checks.Worst(statuses...),
		"last_checked_at": site.LastCheckedAt,
		"results":         latest,
	})
}

// SiteHistogram buckets the stored uptime results into ?size= slots of
// ?width= each, the last slot holding the current time.
func (h *Handler) SiteHistogram(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(histogram.DefaultSize)))
	if err != nil || size < 1 || size > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 1000"})
		return
	}
	width, err := time.ParseDuration(c.DefaultQuery("width", histogram.DefaultWidth.String()))
	if err != nil || width < time.Minute {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width must be a duration of at least 1m"})
		return
	}

	site := h.loadSite(c)
	if site == nil {
		return
	}

	end := time.Now().UTC().Truncate(width).Add(width)
	start := end.Add(-time.Duration(size) * width)

	samples, err := h.repo.UptimeSamples(c.Request.Context(), site.ID, start)
	if err != nil {
		h.logger.Error("Failed to get uptime samples", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get histogram"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"site_id":       site.ID,
		"width_seconds": int64(width / time.Second),
		"cells":         histogram.Render(histogram.Build(samples, end, size, width)),
	})
}
