package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemap/onemap/internal/api/middleware"
	"github.com/onemap/onemap/internal/api/models"
)

func limitedHandler(limit int) http.Handler {
	cfg := middleware.RateLimitConfig{RequestLimit: limit, WindowLength: time.Minute}
	return middleware.RateLimitByIP(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := limitedHandler(5)

	for i := 0; i < 5; i++ {
		rec := hit(handler, "/v1/trip-maps", "192.0.2.1:40000")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := limitedHandler(3)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(handler, "/v1/trip-maps", "192.0.2.2:40000").Code)
	}

	rec := hit(handler, "/v1/trip-maps", "192.0.2.2:40000")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/trip-maps", problem.Instance)
	assert.Contains(t, problem.Detail, "Rate limit exceeded")
}

func TestRateLimitByIP_SeparateIPs(t *testing.T) {
	handler := limitedHandler(2)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hit(handler, "/v1/trip-maps", "198.51.100.1:40000").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "/v1/trip-maps", "198.51.100.1:40000").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "/v1/trip-maps", "198.51.100.2:40000").Code)
}

func TestRateLimitByIP_SeparateEndpoints(t *testing.T) {
	handler := limitedHandler(1)

	require.Equal(t, http.StatusOK, hit(handler, "/v1/trip-maps", "203.0.113.9:40000").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "/v1/trip-maps", "203.0.113.9:40000").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "/v1/traces:segment", "203.0.113.9:40000").Code)
}

func TestRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.ExpensiveRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.ExpensiveRateLimit.WindowLength)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.StandardRateLimit.WindowLength)
}
