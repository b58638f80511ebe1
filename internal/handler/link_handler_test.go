package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V1nSky/url-shortener/internal/cache"
	"github.com/V1nSky/url-shortener/internal/clickmeta"
	"github.com/V1nSky/url-shortener/internal/config"
	"github.com/V1nSky/url-shortener/internal/handler"
	"github.com/V1nSky/url-shortener/internal/models"
	"github.com/V1nSky/url-shortener/internal/service"
	"github.com/V1nSky/url-shortener/internal/shortcode"
	"github.com/V1nSky/url-shortener/internal/storage"
)

type apiFixture struct {
	router   *gin.Engine
	store    *storage.Memory
	ingestor *service.Ingestor
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemory()
	c := cache.NewMemory(time.Hour)
	t.Cleanup(c.Close)

	cfg := config.ShortenerConfig{BaseURL: "http://sho.rt", CacheTTL: time.Hour}
	registry := service.NewRegistry(store, c, shortcode.New(), clickmeta.HashIP, cfg, nil)
	ingestor := service.NewIngestor(store, 64, 1, nil)
	t.Cleanup(ingestor.Close)
	aggregator := service.NewAggregator(store)

	linkHandler := handler.NewLinkHandler(registry, ingestor, clickmeta.NewExtractor(nil))
	analyticsHandler := handler.NewAnalyticsHandler(registry, aggregator)

	router := gin.New()
	router.GET("/:code", linkHandler.Redirect)
	api := router.Group("/api")
	{
		api.POST("/links", linkHandler.Create)
		api.GET("/links", linkHandler.List)
		api.GET("/links/:id", linkHandler.Get)
		api.PATCH("/links/:id", linkHandler.Update)
		api.DELETE("/links/:id", linkHandler.Delete)
		api.GET("/links/:id/stats", analyticsHandler.Summary)
		api.GET("/links/:id/export", analyticsHandler.Export)
	}

	return &apiFixture{router: router, store: store, ingestor: ingestor}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:54321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) create(t *testing.T, body string) models.CreateLinkResponse {
	t.Helper()
	w := f.do(http.MethodPost, "/api/links", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateAndRedirect(t *testing.T) {
	f := newAPI(t)

	created := f.create(t, `{"url": "https://example.com/landing"}`)
	assert.Equal(t, "http://sho.rt/"+created.Code, created.ShortURL)

	w := f.do(http.MethodGet, "/"+created.Code, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))

	// The redirect queued a click event.
	assert.Eventually(t, func() bool {
		n, err := f.store.CountClicks(context.Background(), created.ID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateValidationErrors(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing url", `{}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
		{"loopback destination", `{"url": "http://127.0.0.1/x"}`, http.StatusBadRequest},
		{"bad alias", `{"url": "https://example.com", "custom_alias": "a"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/links", tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCreateDuplicateAliasConflicts(t *testing.T) {
	f := newAPI(t)

	f.create(t, `{"url": "https://example.com", "custom_alias": "mine"}`)

	w := f.do(http.MethodPost, "/api/links", `{"url": "https://example.com", "custom_alias": "mine"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeConflict, resp.Code)
}

func TestRedirectUnknownCode(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirectSecretProtected(t *testing.T) {
	f := newAPI(t)

	created := f.create(t, `{"url": "https://example.com", "secret": "hunter2"}`)

	w := f.do(http.MethodGet, "/"+created.Code, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/"+created.Code+"?secret=wrong", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/"+created.Code+"?secret=hunter2", "")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newAPI(t)

	created := f.create(t, `{"url": "https://example.com/old"}`)

	w := f.do(http.MethodPatch, "/api/links/"+created.ID.String(), `{"destination": "https://example.com/new"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/"+created.Code, "")
	assert.Equal(t, "https://example.com/new", w.Header().Get("Location"))

	w = f.do(http.MethodDelete, "/api/links/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/"+created.Code, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Bad UUID in the path is a 400, not a 404.
	w = f.do(http.MethodDelete, "/api/links/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLinks(t *testing.T) {
	f := newAPI(t)

	for i := 0; i < 3; i++ {
		f.create(t, fmt.Sprintf(`{"url": "https://example.com/page/%d"}`, i))
	}

	w := f.do(http.MethodGet, "/api/links?page=1&page_size=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.LinkPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Links, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestStatsAndExport(t *testing.T) {
	f := newAPI(t)

	created := f.create(t, `{"url": "https://example.com"}`)

	for i := 0; i < 3; i++ {
		w := f.do(http.MethodGet, "/"+created.Code, "")
		require.Equal(t, http.StatusFound, w.Code)
	}
	require.Eventually(t, func() bool {
		n, err := f.store.CountClicks(context.Background(), created.ID)
		return err == nil && n == 3
	}, 2*time.Second, 10*time.Millisecond)

	w := f.do(http.MethodGet, "/api/links/"+created.ID.String()+"/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, int64(3), report.TotalClicks)
	// All three clicks share one hashed IP.
	assert.Equal(t, int64(1), report.UniqueVisitors)

	w = f.do(http.MethodGet, "/api/links/"+created.ID.String()+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.Code)
	// Header plus three click rows.
	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
}

func TestStatsUnknownLink(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodGet, "/api/links/01234567-89ab-cdef-0123-456789abcdef/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
