package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
)

// dimensionColumns whitelists the group-by columns. Dimension names
// reach SQL only through this map, never from caller input.
var dimensionColumns = map[service.Dimension]string{
	service.DimensionCountry: "country_code",
	service.DimensionDevice:  "device_type",
	service.DimensionBrowser: "browser",
	service.DimensionReferer: "referer",
}

// ClickRepository implements service.ClickStore over PostgreSQL.
// Aggregations are pushed into SQL so reports stay a handful of
// queries regardless of event volume.
type ClickRepository struct {
	db *pgxpool.Pool
}

// NewClickRepository creates a new click repository.
func NewClickRepository(db *pgxpool.Pool) *ClickRepository {
	return &ClickRepository{db: db}
}

// Insert appends one click event.
func (r *ClickRepository) Insert(ctx context.Context, event *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, link_id, ip_hash, country_code, city, browser, os, device_type, referer, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.LinkID,
		event.IPHash,
		event.CountryCode,
		event.City,
		event.Browser,
		event.OS,
		event.DeviceType,
		event.Referer,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert click event: %w", err)
	}
	return nil
}

// CountClicks counts all events for a link, all time.
func (r *ClickRepository) CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM click_events WHERE link_id = $1`, linkID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

// CountUniqueVisitors counts distinct IP hashes since the given time.
func (r *ClickRepository) CountUniqueVisitors(ctx context.Context, linkID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT ip_hash) FROM click_events WHERE link_id = $1 AND occurred_at >= $2`,
		linkID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique visitors: %w", err)
	}
	return count, nil
}

// ClicksPerDay buckets events since the given time into calendar days.
func (r *ClickRepository) ClicksPerDay(ctx context.Context, linkID uuid.UUID, since time.Time) ([]models.DayCount, error) {
	query := `
		SELECT to_char(date_trunc('day', occurred_at), 'YYYY-MM-DD') AS day, COUNT(*) AS count
		FROM click_events
		WHERE link_id = $1 AND occurred_at >= $2
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := r.db.Query(ctx, query, linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query clicks per day: %w", err)
	}
	defer rows.Close()

	var out []models.DayCount
	for rows.Next() {
		var dc models.DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day bucket: %w", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// CountByDimension groups windowed events by the dimension column,
// skipping NULLs, ordered by count descending. A non-positive limit
// means no cap.
func (r *ClickRepository) CountByDimension(ctx context.Context, linkID uuid.UUID, dim service.Dimension, since time.Time, limit int) ([]models.FieldCount, error) {
	column, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS count
		FROM click_events
		WHERE link_id = $1 AND occurred_at >= $2 AND %s IS NOT NULL
		GROUP BY %s
		ORDER BY count DESC
	`, column, column, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(ctx, query, linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s breakdown: %w", column, err)
	}
	defer rows.Close()

	var out []models.FieldCount
	for rows.Next() {
		var fc models.FieldCount
		if err := rows.Scan(&fc.Value, &fc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		out = append(out, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// ListEvents returns events for a link, newest first. A non-positive
// limit means all events.
func (r *ClickRepository) ListEvents(ctx context.Context, linkID uuid.UUID, limit int) ([]models.ClickEvent, error) {
	query := `
		SELECT id, link_id, ip_hash, country_code, city, browser, os, device_type, referer, occurred_at
		FROM click_events
		WHERE link_id = $1
		ORDER BY occurred_at DESC
	`
	args := []any{linkID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list click events: %w", err)
	}
	defer rows.Close()

	var out []models.ClickEvent
	for rows.Next() {
		var ev models.ClickEvent
		if err := rows.Scan(
			&ev.ID, &ev.LinkID, &ev.IPHash, &ev.CountryCode, &ev.City,
			&ev.Browser, &ev.OS, &ev.DeviceType, &ev.Referer, &ev.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
