package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// BuildInfo is stamped into the binary at link time
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Pinger checks a dependency's reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and version endpoints
type SystemHandler struct {
	db      Pinger
	build   BuildInfo
	timeout time.Duration
}

// NewSystemHandler creates a new system handler. db may be nil.
func NewSystemHandler(db Pinger, build BuildInfo) *SystemHandler {
	return &SystemHandler{db: db, build: build, timeout: 2 * time.Second}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"service":    "carefinder",
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
		"git_commit": h.build.GitCommit,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			body["status"] = "unhealthy"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}

// Version handles GET /version
func (h *SystemHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// NotFound answers unmatched routes with a JSON error
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found: " + c.Request.URL.Path})
}
