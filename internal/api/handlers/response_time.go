package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/timeseries"
)

type loaderEntry struct {
	loader *timeseries.Loader
	users  int
}

// loaderFor returns the loader of a chart session. Requests sharing a
// session supersede each other; without a session every request loads on
// its own. release must be called when the load is over.
func (h *Handler) loaderFor(monitorID, session string, parallel int) (*timeseries.Loader, func()) {
	newLoader := func() *timeseries.Loader {
		return timeseries.NewLoader(h.fetcher, timeseries.NewAccumulator(nil), h.logger, parallel)
	}
	if session == "" {
		return newLoader(), func() {}
	}

	key := monitorID + "/" + session

	h.loadersMu.Lock()
	defer h.loadersMu.Unlock()

	e, ok := h.loaders[key]
	if !ok {
		e = &loaderEntry{loader: newLoader()}
		h.loaders[key] = e
	}
	e.users++

	return e.loader, func() {
		h.loadersMu.Lock()
		defer h.loadersMu.Unlock()
		e.users--
		if e.users == 0 && h.loaders[key] == e {
			delete(h.loaders, key)
		}
	}
}

// ResponseTime loads every requested region of a monitor and returns the
// down-sampled series with stats over the visible regions.
func (h *Handler) ResponseTime(c *gin.Context) {
	if h.fetcher == nil {
		unavailable(c, "Monitoring backend")
		return
	}

	monitorID := c.Param("id")

	maxPoints, err := strconv.Atoi(c.DefaultQuery("max_points", strconv.Itoa(timeseries.DefaultMaxPoints)))
	if err != nil || maxPoints <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_points must be a positive integer"})
		return
	}
	parallel, err := strconv.Atoi(c.DefaultQuery("parallel", "1"))
	if err != nil || parallel < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parallel must be a non-negative integer"})
		return
	}

	regions := splitList(c.Query("regions"))
	if len(regions) == 0 {
		regions = h.regions
	}

	visible := timeseries.NewVisibility()
	for _, region := range splitList(c.Query("hidden")) {
		if visible.IsVisible(region) {
			visible.Toggle(region)
		}
	}

	from, to := timeseries.RangeWindow(c.DefaultQuery("range", "24h"), time.Now())

	loader, release := h.loaderFor(monitorID, c.Query("session"), parallel)
	defer release()

	snap, err := loader.Load(c.Request.Context(), timeseries.Window{
		MonitorID: monitorID,
		Regions:   regions,
		From:      from,
		To:        to,
	})
	if err != nil {
		if errors.Is(err, timeseries.ErrSuperseded) {
			c.JSON(http.StatusConflict, gin.H{"error": "Superseded by a newer request"})
			return
		}
		h.logger.Warn("Response time load aborted", zap.String("monitor_id", monitorID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordResponseTimes(monitorID, snap.Series)
	}

	series := make(map[string]timeseries.Series, len(snap.Series))
	for region, s := range snap.Series {
		series[region] = s.Downsampled(maxPoints)
	}

	c.JSON(http.StatusOK, gin.H{
		"monitor_id": monitorID,
		"from":       from.Unix(),
		"to":         to.Unix(),
		"regions":    series,
		"merged":     timeseries.Merge(series),
		"stats":      timeseries.Aggregate(snap.Series, visible),
		"visible":    visible.Filter(regions),
		"hidden":     visible.Hidden(),
		"failed":     snap.Failed,
	})
}
