package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "med-alert-hub"

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler implements the health check endpoint
type HealthHandler struct {
	database Pinger
	optional map[string]Pinger
	version  string
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Optional dependencies are
// reported but never make the service unhealthy.
func NewHealthHandler(database Pinger, optional map[string]Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		database: database,
		optional: optional,
		version:  version,
		logger:   logger,
	}
}

// GetHealth checks database connectivity
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.database.Ping(ctx); err != nil {
		h.logger.Error("health check failed: database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	response := gin.H{
		"status":   "healthy",
		"database": "connected",
		"service":  serviceName,
		"version":  h.version,
	}
	for name, p := range h.optional {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check: optional dependency unreachable",
				zap.String("dependency", name),
				zap.Error(err),
			)
			response[name] = "disconnected"
			continue
		}
		response[name] = "connected"
	}

	c.JSON(http.StatusOK, response)
}
