package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
)

// AnalyticsHandler serves click reports for links. Reads go through
// the aggregator; the existence check goes through the registry so a
// report for an unknown link is a 404, not an empty report.
type AnalyticsHandler struct {
	registry   *service.Registry
	aggregator *service.Aggregator
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(registry *service.Registry, aggregator *service.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{registry: registry, aggregator: aggregator}
}

// ===========================================
// GET /api/links/:id/stats
// ===========================================

// Summary returns the aggregated click report for a link.
// Query parameter: days (analysis window, default 30).
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	if _, err := h.registry.Get(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	report, err := h.aggregator.Summarize(c.Request.Context(), id, intQuery(c, "days", 0))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ===========================================
// GET /api/links/:id/clicks
// ===========================================

// Recent returns the latest click events for a link, newest first.
// Query parameter: limit (default 50).
func (h *AnalyticsHandler) Recent(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	if _, err := h.registry.Get(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	events, err := h.aggregator.Recent(c.Request.Context(), id, intQuery(c, "limit", 0))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clicks": events})
}

// ===========================================
// GET /api/links/:id/export
// ===========================================

// Export streams every click event for a link as a CSV download.
func (h *AnalyticsHandler) Export(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	link, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	csv, err := h.aggregator.Export(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", link.Code+"-clicks.csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

// linkID parses the :id path parameter, writing a 400 on failure.
func (h *AnalyticsHandler) linkID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid link ID",
			Code:    models.ErrCodeInvalidInput,
			Details: "ID must be a UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *AnalyticsHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.ErrCodeInternalError,
		})
	}
}
