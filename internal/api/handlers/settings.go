package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/db"
)

func (h *Handler) ListSettings(c *gin.Context) {
	settings, err := h.repo.ListSettings(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) GetSetting(c *gin.Context) {
	setting, err := h.repo.GetSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found"})
			return
		}
		h.logger.Error("Failed to get setting", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, setting)
}

// PutSetting stores the request body, which must be a JSON document.
func (h *Handler) PutSetting(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be valid JSON"})
		return
	}

	setting, err := h.repo.PutSetting(c.Request.Context(), c.Param("key"), db.RawJSON(body))
	if err != nil {
		h.logger.Error("Failed to put setting", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setting"})
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (h *Handler) DeleteSetting(c *gin.Context) {
	if err := h.repo.DeleteSetting(c.Request.Context(), c.Param("key")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found"})
			return
		}
		h.logger.Error("Failed to delete setting", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Setting deleted successfully"})
}
