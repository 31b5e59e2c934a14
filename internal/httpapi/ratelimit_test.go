package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newRateLimiter()
	l.now = func() time.Time { return now }

	key := "1.2.3.4|GET /api/registry/search"
	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, l.allow(key), "request %d should pass", i+1)
	}
	assert.False(t, l.allow(key), "request 121 must be rejected")

	// A different client is unaffected.
	assert.True(t, l.allow("5.6.7.8|GET /api/registry/search"))

	// The window resets after 60 s.
	now = now.Add(rateLimitWindow)
	assert.True(t, l.allow(key))
}

func TestRateLimiterPrunesExpiredBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newRateLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < rateLimitPrune; i++ {
		l.buckets[string(rune(i))+"-old"] = &rateBucket{windowStart: now.Add(-2 * rateLimitWindow), count: 1}
	}
	assert.True(t, l.allow("fresh"))
	assert.Less(t, len(l.buckets), rateLimitPrune)
}

func TestClientKeyHeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/x", nil)
	r.RemoteAddr = "9.9.9.9:1234"
	assert.Equal(t, "9.9.9.9", clientKey(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientKey(r))

	r.Header.Set("CF-Connecting-IP", "8.8.4.4")
	assert.Equal(t, "8.8.4.4", clientKey(r))
}

func TestClientKeyUnknown(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/x", nil)
	r.RemoteAddr = ""
	assert.Equal(t, "unknown", clientKey(r))
}

func TestRouteKeyCollapsesIdentifiers(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/services/550e8400-e29b-41d4-a716-446655440000/calls", nil)
	assert.Equal(t, "GET /api/services/:id/calls", routeKey(r))

	r = httptest.NewRequest("GET", "/api/services/12345/calls", nil)
	assert.Equal(t, "GET /api/services/:id/calls", routeKey(r))

	r = httptest.NewRequest("GET", "/api/registry/search", nil)
	assert.Equal(t, "GET /api/registry/search", routeKey(r))
}
