// ===========================================
// Package storage - In-Memory Store
// ===========================================
// Mutex-guarded implementation of the service store contracts, used by
// tests and for dependency-free local development. The PostgreSQL
// implementation in internal/repository is the production backend.

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
)

// Memory implements service.LinkStore and service.ClickStore on plain
// maps and slices. Values are copied in and out so callers can never
// mutate stored state behind the lock.
type Memory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.ShortLink
	byCode  map[string]uuid.UUID
	clicks  []models.ClickEvent
	created []uuid.UUID // insertion order, for creation-time ties
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[uuid.UUID]*models.ShortLink),
		byCode: make(map[string]uuid.UUID),
	}
}

// ===========================================
// LinkStore
// ===========================================

// Create stores the link, enforcing code uniqueness.
func (m *Memory) Create(_ context.Context, link *models.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[link.Code]; exists {
		return service.ErrCodeExists
	}

	stored := *link
	m.byID[link.ID] = &stored
	m.byCode[link.Code] = link.ID
	m.created = append(m.created, link.ID)
	return nil
}

// GetByCode returns the link with the given code.
func (m *Memory) GetByCode(_ context.Context, code string) (*models.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, service.ErrNotFound
	}
	link := *m.byID[id]
	return &link, nil
}

// GetByID returns the link with the given ID.
func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*models.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.byID[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	out := *link
	return &out, nil
}

// Exists reports whether a code is taken.
func (m *Memory) Exists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byCode[code]
	return ok, nil
}

// Update overwrites the stored link. The code is immutable; only
// mutable fields are applied.
func (m *Memory) Update(_ context.Context, link *models.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[link.ID]
	if !ok {
		return service.ErrNotFound
	}
	stored.Destination = link.Destination
	stored.Active = link.Active
	stored.ExpiresAt = link.ExpiresAt
	return nil
}

// Delete removes the link.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	delete(m.byCode, link.Code)
	delete(m.byID, id)
	for i, cid := range m.created {
		if cid == id {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
	return nil
}

// Deactivate flips the link inactive.
func (m *Memory) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	link.Active = false
	return nil
}

// DeactivateExpired flips every expired, still-active link inactive.
func (m *Memory) DeactivateExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var n int64
	for _, link := range m.byID {
		if link.Active && link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
			link.Active = false
			n++
		}
	}
	return n, nil
}

// List returns links newest first with per-link click counts.
func (m *Memory) List(_ context.Context, offset, limit int) ([]models.LinkSummary, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := make([]*models.ShortLink, 0, len(m.byID))
	for _, id := range m.created {
		ordered = append(ordered, m.byID[id])
	}
	// Newest first; insertion order breaks creation-time ties.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	counts := make(map[uuid.UUID]int64)
	for i := range m.clicks {
		counts[m.clicks[i].LinkID]++
	}

	total := int64(len(ordered))
	if offset >= len(ordered) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ordered) {
		end = len(ordered)
	}

	page := make([]models.LinkSummary, 0, end-offset)
	for _, link := range ordered[offset:end] {
		page = append(page, models.LinkSummary{
			ShortLink:  *link,
			ClickCount: counts[link.ID],
		})
	}
	return page, total, nil
}

// ===========================================
// ClickStore
// ===========================================

// Insert appends a click event.
func (m *Memory) Insert(_ context.Context, event *models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks = append(m.clicks, *event)
	return nil
}

// CountClicks counts all events for a link, all time.
func (m *Memory) CountClicks(_ context.Context, linkID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for i := range m.clicks {
		if m.clicks[i].LinkID == linkID {
			n++
		}
	}
	return n, nil
}

// CountUniqueVisitors counts distinct IP hashes since the given time.
func (m *Memory) CountUniqueVisitors(_ context.Context, linkID uuid.UUID, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for i := range m.clicks {
		ev := &m.clicks[i]
		if ev.LinkID == linkID && !ev.OccurredAt.Before(since) {
			seen[ev.IPHash] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

// ClicksPerDay buckets events since the given time into calendar days.
func (m *Memory) ClicksPerDay(_ context.Context, linkID uuid.UUID, since time.Time) ([]models.DayCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buckets := make(map[string]int64)
	for i := range m.clicks {
		ev := &m.clicks[i]
		if ev.LinkID == linkID && !ev.OccurredAt.Before(since) {
			buckets[ev.OccurredAt.Format("2006-01-02")]++
		}
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]models.DayCount, 0, len(days))
	for _, day := range days {
		out = append(out, models.DayCount{Date: day, Count: buckets[day]})
	}
	return out, nil
}

// CountByDimension groups windowed events by the dimension, skipping
// events where it is absent, ordered by count descending with
// first-seen tie order.
func (m *Memory) CountByDimension(_ context.Context, linkID uuid.UUID, dim service.Dimension, since time.Time, limit int) ([]models.FieldCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	var order []string

	for i := range m.clicks {
		ev := &m.clicks[i]
		if ev.LinkID != linkID || ev.OccurredAt.Before(since) {
			continue
		}
		value := dimensionValue(ev, dim)
		if value == nil || *value == "" {
			continue
		}
		if _, ok := counts[*value]; !ok {
			order = append(order, *value)
		}
		counts[*value]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	out := make([]models.FieldCount, 0, len(order))
	for _, value := range order {
		out = append(out, models.FieldCount{Value: value, Count: counts[value]})
	}
	return out, nil
}

// ListEvents returns events for a link, newest first.
func (m *Memory) ListEvents(_ context.Context, linkID uuid.UUID, limit int) ([]models.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ClickEvent
	for i := range m.clicks {
		if m.clicks[i].LinkID == linkID {
			out = append(out, m.clicks[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dimensionValue(ev *models.ClickEvent, dim service.Dimension) *string {
	switch dim {
	case service.DimensionCountry:
		return ev.CountryCode
	case service.DimensionDevice:
		return ev.DeviceType
	case service.DimensionBrowser:
		return ev.Browser
	case service.DimensionReferer:
		return ev.Referer
	default:
		return nil
	}
}
