package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep removes
// expired entries.
const DefaultSweepInterval = 5 * time.Minute

// memoryItem pairs a cached entry with its absolute expiry.
type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// Memory is an in-process Cache with per-entry expiry.
//
// It is an explicitly owned instance: construct it at startup, pass it
// by reference, and call Close at shutdown to stop the sweep goroutine.
// Expired-but-unswept entries are treated as absent on Get, so the
// sweep is purely a memory reclamation concern.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	stop chan struct{}
	once sync.Once
}

// NewMemory creates a memory cache and starts its sweep goroutine.
// A non-positive interval falls back to DefaultSweepInterval.
func NewMemory(sweepInterval time.Duration) *Memory {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	m := &Memory{
		items: make(map[string]memoryItem),
		stop:  make(chan struct{}),
	}

	go m.sweep(sweepInterval)
	return m
}

// Get returns the entry for code, or (nil, nil) if absent or expired.
func (m *Memory) Get(_ context.Context, code string) (*Entry, error) {
	m.mu.RLock()
	item, ok := m.items[code]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(item.expiresAt) {
		// Lazy expiry: logically absent even before the sweep runs.
		m.mu.Lock()
		if cur, ok := m.items[code]; ok && cur.expiresAt.Equal(item.expiresAt) {
			delete(m.items, code)
		}
		m.mu.Unlock()
		return nil, nil
	}

	entry := item.entry
	return &entry, nil
}

// Set stores entry under code for ttl. Non-positive TTLs are ignored:
// an entry's expiry must be strictly in the future at insertion.
func (m *Memory) Set(_ context.Context, code string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	m.items[code] = memoryItem{entry: *entry, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes the entry for code, if any.
func (m *Memory) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	delete(m.items, code)
	m.mu.Unlock()
	return nil
}

// Len reports the number of physically stored entries, including any
// expired ones the sweep has not reached yet.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

// sweep periodically removes entries whose expiry has passed.
func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for code, item := range m.items {
				if now.After(item.expiresAt) {
					delete(m.items, code)
				}
			}
			m.mu.Unlock()
		}
	}
}
