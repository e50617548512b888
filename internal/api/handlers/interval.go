package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leozw/uptime-dashboard/internal/interval"
)

// scale picks the slider for ?scale=. Only the monitoring scale carries
// the plan floor.
func (h *Handler) scale(c *gin.Context) (*interval.Scale, bool) {
	switch c.DefaultQuery("scale", "monitoring") {
	case "monitoring":
		return h.monitoring.WithFloor(h.planFloor(c.Request.Context())), true
	case "expiry":
		return h.expiry, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scale must be monitoring or expiry"})
		return nil, false
	}
}

func (h *Handler) IntervalTicks(c *gin.Context) {
	s, ok := h.scale(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min":   s.Min,
		"max":   s.Max,
		"floor": s.Floor,
		"ticks": s.Ticks(),
	})
}

// IntervalSlider maps ?seconds= to a slider position.
func (h *Handler) IntervalSlider(c *gin.Context) {
	s, ok := h.scale(c)
	if !ok {
		return
	}

	seconds, err := strconv.ParseInt(c.Query("seconds"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seconds must be an integer"})
		return
	}

	clamped := s.Clamp(seconds)
	c.JSON(http.StatusOK, gin.H{
		"seconds":  clamped,
		"position": s.SecondsToSlider(clamped),
		"label":    interval.Format(clamped),
		"snapped":  s.Snap(clamped),
	})
}

// IntervalSeconds maps ?position= to a number of seconds.
func (h *Handler) IntervalSeconds(c *gin.Context) {
	s, ok := h.scale(c)
	if !ok {
		return
	}

	position, err := strconv.ParseFloat(c.Query("position"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must be a number"})
		return
	}

	seconds := s.SliderToSeconds(position)
	c.JSON(http.StatusOK, gin.H{
		"seconds":  seconds,
		"position": s.SecondsToSlider(seconds),
		"label":    interval.Format(seconds),
	})
}
