package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V1nSky/url-shortener/internal/cache"
	"github.com/V1nSky/url-shortener/internal/config"
	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
	"github.com/V1nSky/url-shortener/internal/shortcode"
	"github.com/V1nSky/url-shortener/internal/storage"
)

func testHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

type registryFixture struct {
	registry *service.Registry
	store    *storage.Memory
	cache    *cache.Memory
}

func newFixture(t *testing.T) *registryFixture {
	t.Helper()

	store := storage.NewMemory()
	c := cache.NewMemory(time.Hour)
	t.Cleanup(c.Close)

	cfg := config.ShortenerConfig{
		BaseURL:       "http://sho.rt",
		CacheTTL:      time.Hour,
		DenylistHosts: []string{"blocked.example.com"},
	}

	return &registryFixture{
		registry: service.NewRegistry(store, c, shortcode.New(), testHash, cfg, nil),
		store:    store,
		cache:    c,
	}
}

// stubCodes returns a fixed sequence of codes, repeating the last one
// once exhausted.
type stubCodes struct {
	codes []string
	next  int
}

func (s *stubCodes) Generate() (string, error) {
	if s.next < len(s.codes)-1 {
		s.next++
		return s.codes[s.next-1], nil
	}
	return s.codes[len(s.codes)-1], nil
}

func TestCreateAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{
		URL: "https://example.com/some/page/",
	})
	require.NoError(t, err)

	assert.Len(t, link.Code, shortcode.Length)
	for _, r := range link.Code {
		assert.Contains(t, shortcode.Alphabet, string(r))
	}
	assert.True(t, link.Active)
	// Trailing slash is stripped during normalization.
	assert.Equal(t, "https://example.com/some/page", link.Destination)

	res, err := f.registry.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, link.ID, res.LinkID)
	assert.Equal(t, "https://example.com/some/page", res.Destination)
	assert.False(t, res.SecretProtected)
}

func TestCreateWithCustomAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{
		URL:         "https://example.com",
		CustomAlias: "my-link_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-link_1", link.Code)

	// Same alias again conflicts.
	_, err = f.registry.Create(ctx, models.CreateLinkRequest{
		URL:         "https://other.example.com",
		CustomAlias: "my-link_1",
	})
	assert.ErrorIs(t, err, service.ErrAliasTaken)
}

func TestCreateRejectsInvalidAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, alias := range []string{"ab", "has space", "way-too-long-alias-over-20", "semi;colon"} {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{
			URL:         "https://example.com",
			CustomAlias: alias,
		})
		assert.ErrorIs(t, err, service.ErrAliasInvalid, "alias %q", alias)
	}
}

func TestCreateRejectsInvalidDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, destination := range []string{
		"",
		"not a url",
		"/relative/path",
		"ftp://example.com/file",
		"http://localhost/admin",
		"http://127.0.0.1/x",
		"http://10.0.0.5/internal",
		"http://192.168.1.1/router",
	} {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: destination})
		assert.ErrorIs(t, err, service.ErrInvalidDestination, "destination %q", destination)
	}
}

func TestCreateRejectsDenylistedDestination(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Create(context.Background(), models.CreateLinkRequest{
		URL: "https://blocked.example.com/page",
	})
	assert.ErrorIs(t, err, service.ErrBlockedDestination)
}

func TestDenylistMatchesHostBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The fixture denylists "blocked.example.com". Subdomains are
	// covered; unrelated hosts that merely contain the entry are not.
	for _, destination := range []string{
		"https://blocked.example.com/page",
		"https://sub.blocked.example.com/page",
		"https://BLOCKED.example.com/page",
	} {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: destination})
		assert.ErrorIs(t, err, service.ErrBlockedDestination, "destination %q", destination)
	}

	for _, destination := range []string{
		"https://notblocked.example.com/page",
		"https://blocked.example.com.attacker.net/page",
		"https://example.com/blocked.example.com",
	} {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: destination})
		assert.NoError(t, err, "destination %q", destination)
	}
}

func TestResolveUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Resolve(context.Background(), "nothere")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestResolveExpiredLinkDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	link, err := f.registry.Create(ctx, models.CreateLinkRequest{
		URL:       "https://example.com",
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	_, err = f.registry.Resolve(ctx, link.Code)
	assert.ErrorIs(t, err, service.ErrNotFound)

	// Observing expiry flips the stored record inactive.
	stored, err := f.store.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestResolveServesActiveCacheHitWithoutStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	require.NoError(t, err)

	// Remove the record behind the registry's back. The write-through
	// entry from Create still serves the resolve.
	require.NoError(t, f.store.Delete(ctx, link.ID))

	res, err := f.registry.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", res.Destination)
}

func TestUpdateDestinationInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com/old"})
	require.NoError(t, err)

	newDest := "https://example.com/new"
	updated, err := f.registry.Update(ctx, link.ID, models.UpdateLinkRequest{Destination: &newDest})
	require.NoError(t, err)
	assert.Equal(t, newDest, updated.Destination)

	res, err := f.registry.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, newDest, res.Destination)
}

func TestUpdateDeactivateStopsResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	require.NoError(t, err)

	inactive := false
	_, err = f.registry.Update(ctx, link.ID, models.UpdateLinkRequest{Active: &inactive})
	require.NoError(t, err)

	_, err = f.registry.Resolve(ctx, link.Code)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateUnknownLink(t *testing.T) {
	f := newFixture(t)

	dest := "https://example.com"
	_, err := f.registry.Update(context.Background(), uuid.New(), models.UpdateLinkRequest{Destination: &dest})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteRemovesLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, f.registry.Delete(ctx, link.ID))

	_, err = f.registry.Resolve(ctx, link.Code)
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.ErrorIs(t, f.registry.Delete(ctx, link.ID), service.ErrNotFound)
}

func TestGeneratedCodeCollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First two draws collide with existing codes, third is free.
	codes := &stubCodes{codes: []string{"taken01", "taken02", "free003"}}
	registry := service.NewRegistry(f.store, f.cache, codes, testHash,
		config.ShortenerConfig{BaseURL: "http://sho.rt", CacheTTL: time.Hour}, nil)

	for _, taken := range []string{"taken01", "taken02"} {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{
			URL:         "https://example.com",
			CustomAlias: taken,
		})
		require.NoError(t, err)
	}

	link, err := registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "free003", link.Code)
}

func TestGeneratedCodeExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	codes := &stubCodes{codes: []string{"onlyone"}}
	registry := service.NewRegistry(f.store, f.cache, codes, testHash,
		config.ShortenerConfig{BaseURL: "http://sho.rt", CacheTTL: time.Hour}, nil)

	_, err := f.registry.Create(ctx, models.CreateLinkRequest{
		URL:         "https://example.com",
		CustomAlias: "onlyone",
	})
	require.NoError(t, err)

	_, err = registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, service.ErrCodeExhausted)
}

func TestVerifySecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	protected, err := f.registry.Create(ctx, models.CreateLinkRequest{
		URL:    "https://example.com",
		Secret: "hunter2",
	})
	require.NoError(t, err)
	require.NotNil(t, protected.SecretHash)
	// Plaintext is never stored.
	assert.NotContains(t, *protected.SecretHash, "hunter2")

	ok, err := f.registry.VerifySecret(ctx, protected.Code, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.registry.VerifySecret(ctx, protected.Code, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := f.registry.Create(ctx, models.CreateLinkRequest{URL: "https://example.com"})
	require.NoError(t, err)

	ok, err = f.registry.VerifySecret(ctx, open.Code, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.registry.Create(ctx, models.CreateLinkRequest{
			URL: fmt.Sprintf("https://example.com/page/%d", i),
		})
		require.NoError(t, err)
	}

	page, err := f.registry.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	for _, link := range page.Links {
		assert.True(t, strings.HasPrefix(link.ShortURL, "http://sho.rt/"))
	}

	last, err := f.registry.List(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last.Links, 1)
}

func TestShortURL(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "http://sho.rt/abc1234", f.registry.ShortURL("abc1234"))
}
