// ===========================================
// Package handler - HTTP Request Handlers
// ===========================================
// Handlers are the entry point for HTTP requests. They stay thin:
// parse input, call a service, format the response. Error-to-status
// mapping is centralized in handleError.

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/clickmeta"
	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
)

// LinkHandler handles link lifecycle and redirect requests.
type LinkHandler struct {
	registry  *service.Registry
	ingestor  *service.Ingestor
	extractor *clickmeta.Extractor
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(registry *service.Registry, ingestor *service.Ingestor, extractor *clickmeta.Extractor) *LinkHandler {
	return &LinkHandler{
		registry:  registry,
		ingestor:  ingestor,
		extractor: extractor,
	}
}

// ===========================================
// POST /api/links
// ===========================================

// Create shortens a URL. Returns 201 with the new link.
func (h *LinkHandler) Create(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request body",
			Code:    models.ErrCodeInvalidInput,
			Details: err.Error(),
		})
		return
	}

	link, err := h.registry.Create(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateLinkResponse{
		ID:          link.ID,
		Code:        link.Code,
		ShortURL:    h.registry.ShortURL(link.Code),
		Destination: link.Destination,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	})
}

// ===========================================
// GET /:code
// ===========================================

// Redirect resolves a short code and sends the client to the
// destination with a 302. A 302 rather than a 301 keeps browsers
// coming back, so every visit reaches the analytics pipeline.
//
// Secret-protected links require a matching ?secret= query parameter.
// Click recording is fire-and-forget: the redirect never waits on it.
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	resolution, err := h.registry.Resolve(c.Request.Context(), code)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if resolution.SecretProtected {
		ok, err := h.registry.VerifySecret(c.Request.Context(), code, c.Query("secret"))
		if err != nil {
			h.handleError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "This link requires a secret",
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}
	}

	meta := h.extractor.FromRequest(c.Request)
	h.ingestor.Record(&models.ClickEvent{
		LinkID:      resolution.LinkID,
		IPHash:      meta.IPHash,
		CountryCode: meta.CountryCode,
		City:        meta.City,
		Browser:     meta.Browser,
		OS:          meta.OS,
		DeviceType:  meta.DeviceType,
		Referer:     meta.Referer,
	})

	c.Redirect(http.StatusFound, resolution.Destination)
}

// ===========================================
// GET /api/links
// ===========================================

// List returns one page of links, newest first.
// Query parameters: page (default 1), page_size (default 20, max 100).
func (h *LinkHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 0)

	result, err := h.registry.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===========================================
// GET /api/links/:id
// ===========================================

// Get returns one link by ID.
func (h *LinkHandler) Get(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	link, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// ===========================================
// PATCH /api/links/:id
// ===========================================

// Update patches a link's destination and/or active flag.
func (h *LinkHandler) Update(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	var req models.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request body",
			Code:    models.ErrCodeInvalidInput,
			Details: err.Error(),
		})
		return
	}

	link, err := h.registry.Update(c.Request.Context(), id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// ===========================================
// DELETE /api/links/:id
// ===========================================

// Delete removes a link. Returns 204 on success.
func (h *LinkHandler) Delete(c *gin.Context) {
	id, ok := h.linkID(c)
	if !ok {
		return
	}

	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===========================================
// Helpers
// ===========================================

// linkID parses the :id path parameter, writing a 400 on failure.
func (h *LinkHandler) linkID(c *gin.Context) (uuid.UUID, bool) {
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

// intQuery parses an integer query parameter, falling back on absence
// or parse failure.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// ===========================================
// Error Handling
// ===========================================

// handleError maps service errors to HTTP responses. Unknown errors
// become a generic 500 so internals never leak to clients.
func (h *LinkHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		})

	case errors.Is(err, service.ErrAliasTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Custom alias already taken",
			Code:  models.ErrCodeConflict,
		})

	case errors.Is(err, service.ErrAliasInvalid):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid custom alias",
			Code:    models.ErrCodeInvalidInput,
			Details: "Alias must be 3-20 characters: letters, digits, underscore or hyphen",
		})

	case errors.Is(err, service.ErrInvalidDestination):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid destination URL",
			Code:    models.ErrCodeInvalidInput,
			Details: "Destination must be an absolute, public http(s) URL",
		})

	case errors.Is(err, service.ErrBlockedDestination):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Destination host is blocked",
			Code:  models.ErrCodeBlocked,
		})

	case errors.Is(err, service.ErrCodeExhausted):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Could not allocate a short code, try again",
			Code:  models.ErrCodeInternalError,
		})

	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.ErrCodeInternalError,
		})
	}
}
