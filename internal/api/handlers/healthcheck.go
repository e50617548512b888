package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

type HealthcheckRequest struct {
	URL    string   `json:"url" binding:"required"`
	Checks []string `json:"checks"`
}

// RunHealthcheck fetches an envelope for the URL and classifies every kind
// it contains.
func (h *Handler) RunHealthcheck(c *gin.Context) {
	var req HealthcheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := normalizeURL(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kinds, err := parseKinds(req.Checks)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(kinds) == 0 {
		kinds = checks.AllKinds
	}

	env, err := h.source.Healthcheck(c.Request.Context(), target, kinds)
	if err != nil {
		h.upstreamError(c, "Healthcheck failed", err)
		return
	}

	results := h.classifier.ClassifyAll(env)
	c.JSON(http.StatusOK, gin.H{
		"url":         target,
		"overall":     checks.Overall(results),
		"results":     results,
		"duration_ms": env.Result.DurationMs,
	})
}

func parseKinds(names []string) ([]checks.Kind, error) {
	kinds := make([]checks.Kind, 0, len(names))
	seen := make(map[checks.Kind]bool, len(names))
	for _, name := range names {
		kind, err := checks.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// normalizeURL adds a missing https scheme and rejects anything that is not
// an http(s) URL with a host.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url has no host")
	}
	return u.String(), nil
}
