// ===========================================
// Package handler - Health Check Handler
// ===========================================
// Liveness answers "is the process alive", readiness answers "can it
// serve traffic". Readiness checks dependencies; liveness never does.

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/V1nSky/url-shortener/internal/database"
	"github.com/V1nSky/url-shortener/internal/models"
)

// HealthChecker is anything that can report its own availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests. The cache checker is
// nil when the in-memory cache backend is active, since a process-local
// map has no failure mode worth probing.
type HealthHandler struct {
	postgres *database.PostgresDB
	cache    HealthChecker
	version  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pg *database.PostgresDB, cache HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		postgres: pg,
		cache:    cache,
		version:  version,
	}
}

// ===========================================
// GET /health
// ===========================================

// Health reports the status of the service and each dependency.
// Returns 200 when everything is reachable, 503 otherwise so load
// balancers route traffic elsewhere.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	healthy := true

	if err := h.postgres.Health(ctx); err != nil {
		services["postgres"] = "error: " + err.Error()
		healthy = false
	} else {
		services["postgres"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Health(ctx); err != nil {
			services["cache"] = "error: " + err.Error()
			healthy = false
		} else {
			services["cache"] = "ok"
		}
	}

	response := models.HealthResponse{
		Version:  h.version,
		Services: services,
	}

	if healthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// ===========================================
// GET /ready
// ===========================================

// Ready is the probe-friendly readiness check: 200 or 503, no body.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.postgres.Health(ctx); err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	if h.cache != nil {
		if err := h.cache.Health(ctx); err != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
	}

	c.Status(http.StatusOK)
}

// ===========================================
// GET /live
// ===========================================

// Live confirms the process is running. No dependency checks.
func (h *HealthHandler) Live(c *gin.Context) {
	c.Status(http.StatusOK)
}
