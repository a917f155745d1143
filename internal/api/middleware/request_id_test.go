package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemap/onemap/internal/api/middleware"
)

func serveRequestID(t *testing.T, incoming string) (echoed, seen string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Header().Get("X-Request-Id"), seen
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	echoed, seen := serveRequestID(t, "")

	require.NotEmpty(t, seen)
	assert.Equal(t, echoed, seen)
	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Len(t, seen, len("req_")+22)
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	echoed, seen := serveRequestID(t, "  dispatch-console-42  ")

	assert.Equal(t, "dispatch-console-42", seen)
	assert.Equal(t, "dispatch-console-42", echoed)
}

func TestRequestID_ReplacesOversizedID(t *testing.T) {
	long := strings.Repeat("x", 129)

	echoed, seen := serveRequestID(t, long)

	assert.NotEqual(t, long, seen)
	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, echoed, seen)
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := middleware.NewRequestID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}
