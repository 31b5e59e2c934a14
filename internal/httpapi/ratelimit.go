package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/telemetry"
)

const (
	rateLimitMax    = 120
	rateLimitWindow = 60 * time.Second
	rateLimitPrune  = 20_000
)

type rateBucket struct {
	windowStart time.Time
	count       int
}

// rateLimiter is a fixed-window counter keyed by (client, route). A
// bucket resets when its window has elapsed; the whole map is pruned of
// expired buckets when it grows past rateLimitPrune entries.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     time.Now,
	}
}

// allow consumes one slot for the key, reporting whether the request may
// proceed.
func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rateLimitWindow {
		if len(l.buckets) >= rateLimitPrune {
			l.prune(now)
		}
		l.buckets[key] = &rateBucket{windowStart: now, count: 1}
		return true
	}
	if b.count >= rateLimitMax {
		return false
	}
	b.count++
	return true
}

// prune drops expired buckets. Caller holds the lock.
func (l *rateLimiter) prune(now time.Time) {
	before := len(l.buckets)
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) >= rateLimitWindow {
			delete(l.buckets, k)
		}
	}
	log.Debug().Int("before", before).Int("after", len(l.buckets)).Msg("rate limit buckets pruned")
}

// clientKey extracts the caller identity from trusted proxy headers:
// CF-Connecting-IP, then the first X-Forwarded-For entry. Direct
// connections without proxy headers key on the remote address so
// unproxied clients do not all share the "unknown" bucket.
func clientKey(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "unknown"
}

// routeKey normalizes the path so parameterized routes share one bucket.
// Segments that look like identifiers (uuids, long hex, numbers) collapse
// to ":id".
func routeKey(r *http.Request) string {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return r.Method + " /" + strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if len(seg) >= 16 {
		return true
	}
	if seg == "" {
		return false
	}
	for _, c := range seg {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// limitMiddleware enforces the public fixed-window limit.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeKey(r)
		key := clientKey(r) + "|" + route
		if !l.allow(key) {
			telemetry.RateLimited.WithLabelValues(route).Inc()
			writeError(w, apperr.New(apperr.RateLimited, "rate limit exceeded, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
