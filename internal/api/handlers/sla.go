package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/sla"
)

// SiteSLA reports the availability of a site over ?period= (24h, 7d, 30d
// or month) against ?target= percent.
func (h *Handler) SiteSLA(c *gin.Context) {
	target := sla.DefaultTarget
	if raw := c.Query("target"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target must be a percentage in (0, 100]"})
			return
		}
		target = v
	}

	period := c.DefaultQuery("period", "30d")
	now := time.Now().UTC()

	var lookback time.Duration
	if period != "month" {
		d, err := parsePeriod(period)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lookback = d
	}

	site := h.loadSite(c)
	if site == nil {
		return
	}

	var (
		report *sla.Report
		err    error
	)
	if period == "month" {
		report, err = h.sla.CurrentMonth(c.Request.Context(), site.ID, now, target)
	} else {
		report, err = h.sla.Report(c.Request.Context(), site.ID, now.Add(-lookback), now, target)
	}
	if err != nil {
		h.logger.Error("Failed to compute uptime report", zap.Error(err), zap.String("site_id", site.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute uptime report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// parsePeriod accepts Go durations plus a whole number of days like "7d".
func parsePeriod(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid period %q", s)
		}
	}

	if d < time.Minute || d > 366*24*time.Hour {
		return 0, fmt.Errorf("period %q must be between 1m and 366d", s)
	}
	return d, nil
}
