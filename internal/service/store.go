package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/models"
)

// LinkStore is the durable, authoritative record of short links.
// Implementations must enforce uniqueness on the short code: Create
// returns ErrCodeExists when the code is already taken, atomically
// under concurrent creation. Lookups return ErrNotFound for absent
// records.
type LinkStore interface {
	Create(ctx context.Context, link *models.ShortLink) error
	GetByCode(ctx context.Context, code string) (*models.ShortLink, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ShortLink, error)
	Exists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, link *models.ShortLink) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Deactivate flips a link inactive without removing it. Used when
	// a resolve observes the link past its expiry.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// DeactivateExpired flips every expired, still-active link
	// inactive and reports how many were touched.
	DeactivateExpired(ctx context.Context) (int64, error)

	// List returns links ordered by creation time descending, with
	// per-link click counts, plus the total number of links.
	List(ctx context.Context, offset, limit int) ([]models.LinkSummary, int64, error)
}

// Dimension names a ClickEvent field that breakdowns group by.
type Dimension string

const (
	DimensionCountry Dimension = "country_code"
	DimensionDevice  Dimension = "device_type"
	DimensionBrowser Dimension = "browser"
	DimensionReferer Dimension = "referer"
)

// ClickStore is the append-only record of click events, with the
// aggregation primitives the analytics reports are built from.
type ClickStore interface {
	Insert(ctx context.Context, event *models.ClickEvent) error

	// CountClicks counts all events for a link, all time.
	CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error)

	// CountUniqueVisitors counts distinct IP hashes since the given
	// time.
	CountUniqueVisitors(ctx context.Context, linkID uuid.UUID, since time.Time) (int64, error)

	// ClicksPerDay buckets events since the given time into calendar
	// days (YYYY-MM-DD), ascending.
	ClicksPerDay(ctx context.Context, linkID uuid.UUID, since time.Time) ([]models.DayCount, error)

	// CountByDimension groups events since the given time by the
	// dimension, skipping events where it is absent, ordered by count
	// descending. Ties break in storage order. A non-positive limit
	// means no cap.
	CountByDimension(ctx context.Context, linkID uuid.UUID, dim Dimension, since time.Time, limit int) ([]models.FieldCount, error)

	// ListEvents returns events for a link, newest first. A
	// non-positive limit means all events.
	ListEvents(ctx context.Context, linkID uuid.UUID, limit int) ([]models.ClickEvent, error)
}
