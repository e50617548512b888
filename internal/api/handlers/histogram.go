package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leozw/uptime-dashboard/internal/histogram"
)

// LoadingFrame returns the loading strip for ?tick=.
func (h *Handler) LoadingFrame(c *gin.Context) {
	tick, err := strconv.Atoi(c.DefaultQuery("tick", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tick must be an integer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tick":     tick,
		"interval": histogram.LoadingTick.Milliseconds(),
		"cells":    histogram.Frame(tick),
	})
}

// LoadingStream streams loading frames as server-sent events until the
// client goes away.
func (h *Handler) LoadingStream(c *gin.Context) {
	frames := histogram.Animate(c.Request.Context())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for frame := range frames {
		c.SSEvent("frame", frame)
		c.Writer.Flush()
	}
}
