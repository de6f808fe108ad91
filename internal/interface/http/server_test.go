package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg, Dependencies{})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.buildMiddlewareChain(s.router).ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthStaysOpenWithoutAPIKey(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.APIKeys = []string{"secret-key"}
	})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIRoutesRequireConfiguredKey(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.APIKeys = []string{"secret-key"}
	})

	missing := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/learners/x/progress", nil))
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	wrong := httptest.NewRequest(http.MethodGet, "/api/v1/learners/x/progress", nil)
	wrong.Header.Set("X-API-Key", "not-it")
	assert.Equal(t, http.StatusUnauthorized, serve(s, wrong).Code)
}

func TestServer_NoKeysConfiguredLeavesRoutesOpen(t *testing.T) {
	s := newTestServer(t, nil)
	require.Nil(t, s.auth)

	// The handler itself fails on the bogus learner id, but the request
	// reaches it instead of being bounced by auth.
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/learners/x/progress", nil))
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_SecurityHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestServer_OversizedBodyRejected(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.ContentLength = maxRequestBody + 1

	rec := serve(s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
