// ===========================================
// Package service - Business Logic Layer
// ===========================================
// Services orchestrate stores, the resolution cache and the analytics
// pipeline. Handlers stay thin (HTTP in/out), repositories stay thin
// (DB in/out); the rules live here.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/cache"
	"github.com/V1nSky/url-shortener/internal/config"
	"github.com/V1nSky/url-shortener/internal/models"
)

// maxCodeAttempts bounds the collision retry loop. With 62^7 codes a
// collision is already rare; five straight collisions means something
// is wrong, and exhaustion is surfaced rather than retried forever.
const maxCodeAttempts = 5

// CodeGenerator produces random short codes. Collision handling is the
// registry's job, not the generator's.
type CodeGenerator interface {
	Generate() (string, error)
}

// HashFunc is the one-way hashing primitive used for link secrets.
type HashFunc func(string) string

// Resolution is the outcome of resolving a short code on the redirect
// path.
type Resolution struct {
	LinkID          uuid.UUID
	Destination     string
	SecretProtected bool
}

// Registry orchestrates link creation, resolution, mutation and
// listing. It owns the cache-aside protocol: the cache is advisory,
// and any cache failure degrades to a store read (fail-open).
type Registry struct {
	links LinkStore
	cache cache.Cache
	codes CodeGenerator
	hash  HashFunc
	cfg   config.ShortenerConfig
	log   *slog.Logger
}

// NewRegistry creates a link registry.
func NewRegistry(links LinkStore, c cache.Cache, codes CodeGenerator, hash HashFunc, cfg config.ShortenerConfig, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Registry{
		links: links,
		cache: c,
		codes: codes,
		hash:  hash,
		cfg:   cfg,
		log:   log,
	}
}

// ===========================================
// Create
// ===========================================

// Create validates and normalizes the destination, assigns a short
// code (custom alias or generated with bounded collision retry),
// persists the link, and write-through populates the cache.
func (r *Registry) Create(ctx context.Context, req models.CreateLinkRequest) (*models.ShortLink, error) {
	destination, err := r.normalizeDestination(req.URL)
	if err != nil {
		return nil, err
	}

	var secretHash *string
	if req.Secret != "" {
		h := r.hash(req.Secret)
		secretHash = &h
	}

	link := &models.ShortLink{
		ID:          uuid.New(),
		Destination: destination,
		SecretHash:  secretHash,
		Active:      true,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   time.Now(),
	}

	if req.CustomAlias != "" {
		if err := r.createWithAlias(ctx, link, req.CustomAlias); err != nil {
			return nil, err
		}
	} else {
		if err := r.createWithGeneratedCode(ctx, link); err != nil {
			return nil, err
		}
	}

	// Write-through on create: a fresh link is likely to be resolved
	// soon. Cache failure is not a create failure.
	r.populateCache(ctx, link)

	return link, nil
}

func (r *Registry) createWithAlias(ctx context.Context, link *models.ShortLink, alias string) error {
	if !validAlias(alias) {
		return ErrAliasInvalid
	}

	link.Code = alias
	err := r.links.Create(ctx, link)
	if errors.Is(err, ErrCodeExists) {
		return ErrAliasTaken
	}
	if err != nil {
		return fmt.Errorf("failed to store link: %w", err)
	}
	return nil
}

func (r *Registry) createWithGeneratedCode(ctx context.Context, link *models.ShortLink) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.codes.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate code: %w", err)
		}

		// Existence pre-check keeps the common collision out of the
		// insert path; the store's unique constraint still backstops
		// a concurrent create of the same code.
		exists, err := r.links.Exists(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to check code availability: %w", err)
		}
		if exists {
			continue
		}

		link.Code = code
		err = r.links.Create(ctx, link)
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store link: %w", err)
		}
		return nil
	}

	r.log.Error("short code generation exhausted", "attempts", maxCodeAttempts)
	return ErrCodeExhausted
}

// ===========================================
// Resolve
// ===========================================

// Resolve maps a short code to its destination. Called on every
// redirect, so the cache is consulted first and trusted on an active
// hit; the store is only read on a miss or an inactive entry.
//
// An expired link is flipped inactive in the store as a side effect.
// Absent, inactive and expired all collapse to ErrNotFound.
func (r *Registry) Resolve(ctx context.Context, code string) (*Resolution, error) {
	if entry, err := r.cache.Get(ctx, code); err != nil {
		r.log.Warn("cache read failed, falling back to store", "code", code, "error", err)
	} else if entry != nil && entry.Active {
		return &Resolution{
			LinkID:          entry.LinkID,
			Destination:     entry.Destination,
			SecretProtected: entry.SecretProtected,
		}, nil
	}

	link, err := r.links.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}
	if !link.Active {
		return nil, ErrNotFound
	}

	if link.IsExpired() {
		// Cached entries are TTL-clamped to the expiry, so no cache
		// invalidation is needed here.
		if err := r.links.Deactivate(ctx, link.ID); err != nil {
			r.log.Error("failed to deactivate expired link", "code", code, "error", err)
		}
		return nil, ErrNotFound
	}

	r.populateCache(ctx, link)

	return &Resolution{
		LinkID:          link.ID,
		Destination:     link.Destination,
		SecretProtected: link.SecretProtected(),
	}, nil
}

// Get returns the stored link by ID.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.ShortLink, error) {
	link, err := r.links.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}
	return link, nil
}

// VerifySecret checks a caller-supplied secret against the stored hash
// for a protected link. Links without a secret accept any input.
func (r *Registry) VerifySecret(ctx context.Context, code, secret string) (bool, error) {
	link, err := r.links.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load link: %w", err)
	}

	if !link.SecretProtected() {
		return true, nil
	}
	return r.hash(secret) == *link.SecretHash, nil
}

// ===========================================
// Update / Delete
// ===========================================

// Update applies the patch fields present, persists, and invalidates
// the cached entry for the code. Invalidation happens strictly after
// the store write commits, so the next Resolve repopulates from the
// authoritative record.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, patch models.UpdateLinkRequest) (*models.ShortLink, error) {
	link, err := r.links.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	if patch.Destination != nil {
		destination, err := r.normalizeDestination(*patch.Destination)
		if err != nil {
			return nil, err
		}
		link.Destination = destination
	}
	if patch.Active != nil {
		link.Active = *patch.Active
	}

	if err := r.links.Update(ctx, link); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	r.invalidateCache(ctx, link.Code)
	return link, nil
}

// Delete removes the link from the store, then invalidates its cache
// entry, in that order.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	link, err := r.links.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load link: %w", err)
	}

	if err := r.links.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete link: %w", err)
	}

	r.invalidateCache(ctx, link.Code)
	return nil
}

// ===========================================
// List
// ===========================================

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List returns one page of links, newest first. List views are not
// latency-critical, so the cache is not involved.
func (r *Registry) List(ctx context.Context, page, pageSize int) (*models.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	links, total, err := r.links.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	for i := range links {
		links[i].ShortURL = r.ShortURL(links[i].Code)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &models.LinkPage{
		Links:      links,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// ShortURL renders the public URL for a code.
func (r *Registry) ShortURL(code string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(r.cfg.BaseURL, "/"), code)
}

// ===========================================
// Cache Helpers
// ===========================================

// cacheTTL clamps the default TTL to the link's remaining life, so a
// cached entry can never outlive the link's expiry.
func (r *Registry) cacheTTL(link *models.ShortLink) time.Duration {
	ttl := r.cfg.CacheTTL
	if link.ExpiresAt != nil {
		if remaining := time.Until(*link.ExpiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

func (r *Registry) populateCache(ctx context.Context, link *models.ShortLink) {
	entry := &cache.Entry{
		LinkID:          link.ID,
		Destination:     link.Destination,
		Active:          link.Active,
		SecretProtected: link.SecretProtected(),
	}
	if err := r.cache.Set(ctx, link.Code, entry, r.cacheTTL(link)); err != nil {
		r.log.Warn("cache populate failed", "code", link.Code, "error", err)
	}
}

func (r *Registry) invalidateCache(ctx context.Context, code string) {
	if err := r.cache.Delete(ctx, code); err != nil {
		r.log.Warn("cache invalidate failed", "code", code, "error", err)
	}
}
