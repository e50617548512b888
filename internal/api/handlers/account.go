package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Account returns the cached account; ?refresh=true bypasses the cache.
func (h *Handler) Account(c *gin.Context) {
	if h.accounts == nil {
		unavailable(c, "Monitoring backend")
		return
	}

	user, err := h.account(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil {
		h.upstreamError(c, "Failed to get account", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":                 user,
		"min_interval_seconds": floorFor(user, h.plans),
	})
}
