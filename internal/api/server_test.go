package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/config"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/ratelimit"
	storeMemory "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/store/memory"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

const testSessionID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time {
	return c.now
}

type fakeIDGen struct{}

func (fakeIDGen) NewID() (string, error) {
	return testSessionID, nil
}

func testConfig() config.Config {
	return config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Stream:   config.StreamConfig{HeartbeatInterval: time.Minute, GlobalTimeout: 30 * time.Second},
		Producer: config.ProducerConfig{Model: "openrouter/auto"},
	}
}

func newTestServer(store summary.SummaryStore) *Server {
	return NewServer(
		&fakeGatherer{},
		store,
		nil,
		nil,
		nil,
		nil,
		fakeIDGen{},
		fakeClock{now: time.Unix(1_700_000_000, 0)},
		testConfig(),
		zap.NewNop(),
	)
}

func storedSummary() summary.StoredSummary {
	now := time.Unix(1_700_000_000, 0)
	return summary.StoredSummary{
		VideoID:   "dQw4w9WgXcQ",
		VideoURL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Summary:   "A classic music video.",
		Model:     "openrouter/auto",
		Sources:   []string{"oembed", "metadata"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestHealthAndReadinessProbes(t *testing.T) {
	metrics.Init()
	t.Parallel()

	server := newTestServer(storeMemory.New())
	for _, route := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, route, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, route)
		require.Contains(t, rec.Body.String(), "status")
	}
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	metrics.Init()
	t.Parallel()

	server := newTestServer(storeMemory.New())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}

func TestGetSummaryReturnsStored(t *testing.T) {
	metrics.Init()
	t.Parallel()

	store := storeMemory.New()
	require.NoError(t, store.Save(context.Background(), storedSummary()))
	server := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/videos/dQw4w9WgXcQ/summary", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "A classic music video.")
	require.Contains(t, rec.Body.String(), `"video_id":"dQw4w9WgXcQ"`)
}

func TestGetSummaryNotFound(t *testing.T) {
	metrics.Init()
	t.Parallel()

	server := newTestServer(storeMemory.New())
	req := httptest.NewRequest(http.MethodGet, "/v1/videos/dQw4w9WgXcQ/summary", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "summary not found")
}

func TestDeleteSummaryIsIdempotent(t *testing.T) {
	metrics.Init()
	t.Parallel()

	store := storeMemory.New()
	require.NoError(t, store.Save(context.Background(), storedSummary()))
	server := newTestServer(store)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/v1/videos/dQw4w9WgXcQ/summary", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	require.Equal(t, 0, store.Len())
}

func TestAPIKeyMiddleware(t *testing.T) {
	metrics.Init()
	t.Parallel()

	cfg := testConfig()
	cfg.Server.APIKey = "secret"
	server := NewServer(
		&fakeGatherer{},
		storeMemory.New(),
		nil,
		nil,
		nil,
		nil,
		fakeIDGen{},
		fakeClock{now: time.Unix(1_700_000_000, 0)},
		cfg,
		zap.NewNop(),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// EventSource clients cannot set headers, so the key travels as a
	// query parameter.
	req = httptest.NewRequest(http.MethodGet, "/healthz?api_key=secret", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	metrics.Init()
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer(storeMemory.New()).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimiterGuardsV1Routes(t *testing.T) {
	metrics.Init()
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{RPS: 0.01, Burst: 1})
	server := NewServer(
		&fakeGatherer{},
		storeMemory.New(),
		nil,
		nil,
		nil,
		limiter,
		fakeIDGen{},
		fakeClock{now: time.Unix(1_700_000_000, 0)},
		testConfig(),
		zap.NewNop(),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/videos/dQw4w9WgXcQ/summary", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/videos/dQw4w9WgXcQ/summary", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "retryAfter")

	// Probes stay outside the limited group.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddlewareWrites500(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}
