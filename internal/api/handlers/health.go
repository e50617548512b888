package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/probe"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready needs the database. The queue is reported but optional, since the
// API can serve everything except manual checks without it.
func (h *Handler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	components := gin.H{"source": h.sourceName()}

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		components["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not ready",
			"error":      "database connection failed",
			"components": components,
		})
		return
	}
	components["database"] = "up"

	switch {
	case h.queue == nil:
		components["queue"] = "disabled"
	default:
		if n, err := h.queue.Length(ctx); err != nil {
			h.logger.Warn("Queue unavailable", zap.Error(err))
			components["queue"] = "down"
		} else {
			components["queue"] = "up"
			components["queue_length"] = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"time":       time.Now().Unix(),
		"components": components,
	})
}

func (h *Handler) sourceName() string {
	switch h.source.(type) {
	case nil:
		return "none"
	case *probe.Prober:
		return "probe"
	default:
		return "backend"
	}
}
