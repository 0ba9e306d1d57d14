package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func TestCompression_GzipsWhenAccepted(t *testing.T) {
	h := Compression(okHandler(`{"items":[]}`))

	req := httptest.NewRequest(http.MethodGet, "/api/search/posts", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(body))

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/api/search/posts", nil))
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"items":[]}`, plain.Body.String())
}

func TestResponseOptimization_NotModifiedHasNoBody(t *testing.T) {
	h := ResponseOptimization(okHandler(`{"total":3}`))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/search/resources?q=linux", nil))
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "private, max-age=30, must-revalidate", first.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodGet, "/api/search/resources?q=linux", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Header().Get("Content-Encoding"))
	assert.Zero(t, second.Body.Len())
}

func TestETag_SkipsErrorsAndNonGet(t *testing.T) {
	failing := ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}))
	rec := httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/tags", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))

	post := httptest.NewRecorder()
	ETag(okHandler(`{}`)).ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/cache/sweep", nil))
	assert.Empty(t, post.Header().Get("ETag"))
}

func TestEtagMatches(t *testing.T) {
	tag := `W/"abc"`
	assert.True(t, etagMatches(`W/"abc"`, tag))
	assert.True(t, etagMatches(`"abc"`, tag))
	assert.True(t, etagMatches(`"x", W/"abc"`, tag))
	assert.True(t, etagMatches(`*`, tag))
	assert.False(t, etagMatches(`"abd"`, tag))
	assert.False(t, etagMatches(``, tag))
}

func TestCacheControl(t *testing.T) {
	tests := map[string]string{
		"/api/cache/stats":          "no-store",
		"/api/search/posts/filters": "public, max-age=300, must-revalidate",
		"/api/search/resources":     "private, max-age=30, must-revalidate",
		"/health":                   "private, no-cache, must-revalidate",
	}
	for path, want := range tests {
		rec := httptest.NewRecorder()
		CacheControl(okHandler(`{}`)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Header().Get("Cache-Control"), path)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://forum.example.edu"})(okHandler(`{}`))

	req := httptest.NewRequest(http.MethodGet, "/api/search/posts", nil)
	req.Header.Set("Origin", "https://forum.example.edu")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://forum.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRecorder()
	h.ServeHTTP(preflight, httptest.NewRequest(http.MethodOptions, "/api/cache/sweep", nil))
	assert.Equal(t, http.StatusNoContent, preflight.Code)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cache/warmup", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestObservabilityMiddleware_PassesStatusThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /api/search/{kind}", ObservabilityMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET /api/search/{kind}", r.Pattern)
		w.WriteHeader(http.StatusServiceUnavailable)
	})))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/posts?q=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
