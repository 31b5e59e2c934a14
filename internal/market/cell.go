package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/telemetry"
)

// cell is the common control structure of every upstream cache: one value,
// one expiry instant, and one optional in-flight handle. Readers that miss
// while a fetch is running await that fetch instead of issuing their own.
//
// Failed refreshes re-arm the expiry with the (shorter) failure TTL and
// serve the last known value; the error only propagates when no value has
// ever been stored.
type cell[T any] struct {
	name       string
	successTTL time.Duration
	failureTTL time.Duration
	fetch      func(ctx context.Context) (T, error)

	// onStore, when set, runs after a successful refresh has been stored.
	// Follow-up writes it issues through Update land on top of the stored
	// value instead of racing the store.
	onStore func(v T)

	mu       sync.Mutex
	value    T
	hasValue bool
	expiry   time.Time
	inflight chan struct{}
	lastErr  error
}

func newCell[T any](name string, successTTL, failureTTL time.Duration, fetch func(ctx context.Context) (T, error)) *cell[T] {
	return &cell[T]{
		name:       name,
		successTTL: successTTL,
		failureTTL: failureTTL,
		fetch:      fetch,
	}
}

// Get returns the cached value, refreshing it when expired. Concurrent
// expired readers coalesce onto a single upstream fetch.
func (c *cell[T]) Get(ctx context.Context) (T, error) {
	for {
		c.mu.Lock()
		if c.hasValue && time.Now().Before(c.expiry) {
			v := c.value
			c.mu.Unlock()
			telemetry.CacheHits.WithLabelValues(c.name).Inc()
			return v, nil
		}
		if c.inflight != nil {
			done := c.inflight
			c.mu.Unlock()
			select {
			case <-done:
				continue // re-read under lock
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		}
		done := make(chan struct{})
		c.inflight = done
		c.mu.Unlock()
		telemetry.CacheMisses.WithLabelValues(c.name).Inc()

		// The refresh is detached from the triggering caller so one
		// cancelled request cannot fail every coalesced waiter. The fetch
		// carries its own deadline.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		v, err := c.fetch(fctx)
		cancel()

		c.mu.Lock()
		if err == nil {
			c.value = v
			c.hasValue = true
			c.expiry = time.Now().Add(c.successTTL)
			c.lastErr = nil
		} else {
			// Keep serving the stale value, but back off upstream with the
			// shorter failure TTL.
			c.expiry = time.Now().Add(c.failureTTL)
			c.lastErr = err
			if c.hasValue {
				telemetry.CacheFallbacks.WithLabelValues(c.name).Inc()
				log.Warn().Err(err).Str("cache", c.name).Msg("refresh failed, serving stale value")
			}
		}
		c.inflight = nil
		close(done)

		if err == nil || c.hasValue {
			out := c.value
			stored := err == nil
			c.mu.Unlock()
			if stored && c.onStore != nil {
				c.onStore(out)
			}
			return out, nil
		}
		c.mu.Unlock()
		var zero T
		return zero, err
	}
}

// Peek returns the stored value regardless of expiry.
func (c *cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}

// Update replaces the stored value in place without touching the expiry.
// Used by the global-price gap-fill, which always writes a superset.
func (c *cell[T]) Update(fn func(cur T, has bool) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = fn(c.value, c.hasValue)
	c.hasValue = true
}

// seed installs a value directly; tests and bootstrap use it.
func (c *cell[T]) seed(v T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.hasValue = true
	c.expiry = time.Now().Add(ttl)
}
