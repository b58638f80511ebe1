// ===========================================
// Package repository - Data Access Layer
// ===========================================
// PostgreSQL implementations of the service store contracts. All
// queries are parameterized; the unique constraint on short_links.code
// is the authoritative duplicate-code guard.

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
)

// LinkRepository implements service.LinkStore over PostgreSQL.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link. Returns service.ErrCodeExists when the
// code is already taken.
func (r *LinkRepository) Create(ctx context.Context, link *models.ShortLink) error {
	query := `
		INSERT INTO short_links (id, code, destination, secret_hash, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		link.ID,
		link.Code,
		link.Destination,
		link.SecretHash,
		link.Active,
		link.ExpiresAt,
		link.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByCode retrieves a link by its short code.
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	query := `
		SELECT id, code, destination, secret_hash, is_active, expires_at, created_at
		FROM short_links
		WHERE code = $1
	`
	return r.scanLink(r.db.QueryRow(ctx, query, code))
}

// GetByID retrieves a link by its ID.
func (r *LinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ShortLink, error) {
	query := `
		SELECT id, code, destination, secret_hash, is_active, expires_at, created_at
		FROM short_links
		WHERE id = $1
	`
	return r.scanLink(r.db.QueryRow(ctx, query, id))
}

// Exists checks whether a code is taken. SELECT 1 lets the database
// answer from the code index alone.
func (r *LinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT 1 FROM short_links WHERE code = $1 LIMIT 1`

	var one int
	err := r.db.QueryRow(ctx, query, code).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

// Update persists the mutable fields of a link.
func (r *LinkRepository) Update(ctx context.Context, link *models.ShortLink) error {
	query := `
		UPDATE short_links
		SET destination = $2, is_active = $3, expires_at = $4
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, link.ID, link.Destination, link.Active, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// Delete removes a link. Click events reference links without a
// foreign-key cascade, so historical analytics survive deletion.
func (r *LinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM short_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// Deactivate flips a link inactive.
func (r *LinkRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE short_links SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// DeactivateExpired flips every expired, still-active link inactive.
// Called periodically from a background job.
func (r *LinkRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE short_links
		SET is_active = false
		WHERE is_active = true
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`

	result, err := r.db.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired links: %w", err)
	}
	return result.RowsAffected(), nil
}

// List returns one page of links, newest first, with per-link click
// counts, plus the total number of links.
func (r *LinkRepository) List(ctx context.Context, offset, limit int) ([]models.LinkSummary, int64, error) {
	query := `
		SELECT l.id, l.code, l.destination, l.secret_hash, l.is_active, l.expires_at, l.created_at,
		       COUNT(c.id) AS click_count
		FROM short_links l
		LEFT JOIN click_events c ON c.link_id = l.id
		GROUP BY l.id
		ORDER BY l.created_at DESC
		OFFSET $1 LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.LinkSummary
	for rows.Next() {
		var s models.LinkSummary
		if err := rows.Scan(
			&s.ID, &s.Code, &s.Destination, &s.SecretHash,
			&s.Active, &s.ExpiresAt, &s.CreatedAt, &s.ClickCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	return links, total, nil
}

// scanLink scans one link row, mapping no-rows to ErrNotFound.
func (r *LinkRepository) scanLink(row pgx.Row) (*models.ShortLink, error) {
	link := &models.ShortLink{}
	err := row.Scan(
		&link.ID,
		&link.Code,
		&link.Destination,
		&link.SecretHash,
		&link.Active,
		&link.ExpiresAt,
		&link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// isUniqueViolation reports whether err is a PostgreSQL
// unique-constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
