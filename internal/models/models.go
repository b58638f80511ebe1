// ===========================================
// Package models - Domain Models
// ===========================================
// Dumb data containers shared between handler, service and repository
// layers. JSON tags shape the API, business logic lives in services.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================
// Core Domain Models
// ===========================================

// ShortLink is the authoritative record of a short-code → destination
// mapping. Code is globally unique and immutable once assigned.
type ShortLink struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"short_code"`
	Destination string     `json:"destination"`
	SecretHash  *string    `json:"-"` // never serialized
	Active      bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsExpired reports whether the link has passed its expiration time.
// Links with no expiration never expire.
func (l *ShortLink) IsExpired() bool {
	if l.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*l.ExpiresAt)
}

// SecretProtected reports whether resolving the link requires a secret.
func (l *ShortLink) SecretProtected() bool {
	return l.SecretHash != nil && *l.SecretHash != ""
}

// ClickEvent is one recorded visit to a short link. Append-only:
// events are written once by the ingestor and never mutated.
// Descriptive fields are independently optional - each is nil when
// the extractor could not determine it.
type ClickEvent struct {
	ID          uuid.UUID `json:"id"`
	LinkID      uuid.UUID `json:"link_id"`
	IPHash      string    `json:"-"` // one-way hash, never the raw IP
	CountryCode *string   `json:"country_code,omitempty"`
	City        *string   `json:"city,omitempty"`
	Browser     *string   `json:"browser,omitempty"`
	OS          *string   `json:"os,omitempty"`
	DeviceType  *string   `json:"device_type,omitempty"`
	Referer     *string   `json:"referer,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ===========================================
// Request / Response DTOs
// ===========================================

// CreateLinkRequest is the input for shortening a URL.
type CreateLinkRequest struct {
	URL         string     `json:"url" binding:"required"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Secret      string     `json:"secret,omitempty"`
}

// CreateLinkResponse is returned after successfully creating a link.
type CreateLinkResponse struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	Destination string     `json:"destination"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// UpdateLinkRequest patches a link. Nil fields are left unchanged.
type UpdateLinkRequest struct {
	Destination *string `json:"destination,omitempty"`
	Active      *bool   `json:"is_active,omitempty"`
}

// LinkSummary is a ShortLink plus its all-time click count,
// as returned by list views.
type LinkSummary struct {
	ShortLink
	ShortURL   string `json:"short_url"`
	ClickCount int64  `json:"click_count"`
}

// LinkPage is one page of an offset-paginated link listing.
type LinkPage struct {
	Links      []LinkSummary `json:"links"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// ===========================================
// Analytics DTOs
// ===========================================

// DayCount is one bucket of the per-day click time series.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// FieldCount is one row of a grouped breakdown (country, device, ...).
type FieldCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Report is the summary produced by the analytics aggregator.
// TotalClicks covers all time; everything else is window-scoped.
type Report struct {
	TotalClicks    int64        `json:"total_clicks"`
	UniqueVisitors int64        `json:"unique_visitors"`
	ClicksByDate   []DayCount   `json:"clicks_by_date"`
	TopCountries   []FieldCount `json:"top_countries"`
	TopDevices     []FieldCount `json:"top_devices"`
	TopBrowsers    []FieldCount `json:"top_browsers"`
	TopReferers    []FieldCount `json:"top_referers"`
}

// ===========================================
// Error Response
// ===========================================

// ErrorResponse provides a consistent error format across all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Machine-readable error codes for ErrorResponse.Code.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeBlocked       = "BLOCKED_DESTINATION"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ===========================================
// Health Check Response
// ===========================================

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}
