// Package cache provides a TTL cache where at most one computation per key runs at a time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prophecywatch_cache_requests_total",
		Help: "Cache lookups by key and result (hit or miss)",
	}, []string{"key", "result"})

	cacheComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prophecywatch_cache_computations_total",
		Help: "Cache recomputations by key and result (ok or error)",
	}, []string{"key", "result"})
)

// ErrComputePanic wraps a panic raised inside a compute function
var ErrComputePanic = errors.New("cache compute panicked")

// Clock returns the current time
type Clock func() time.Time

// ComputeFunc produces a fresh value for a key
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// Entry is a stored value and the time it was stored
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
}

// Fresh reports whether the entry is still within ttl at now
func (e Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Before(e.CreatedAt.Add(ttl))
}

type Option func(*settings)

type settings struct {
	clock Clock
}

// WithClock replaces time.Now, mostly for tests
func WithClock(clock Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// Cache stores one value per key for a fixed TTL. Readers of a fresh entry only take a
// read lock; misses for the same key share a single in-flight computation.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	ttl     time.Duration
	clock   Clock
	group   singleflight.Group
}

func New[T any](ttl time.Duration, opts ...Option) *Cache[T] {
	s := settings{clock: time.Now}
	for _, opt := range opts {
		opt(&s)
	}

	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		clock:   s.clock,
	}
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if it is present and fresh
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Fresh(c.clock(), c.ttl) {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// Set replaces the entry for key, stamped with the current time
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = Entry[T]{Value: value, CreatedAt: c.clock()}
	c.mu.Unlock()
}

func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// GetOrCompute returns the fresh value for key, or runs compute once and stores its result.
//
// Concurrent callers that miss on the same key wait for the same computation. The
// computation runs on a context detached from ctx cancellation so a caller that gives up
// does not fail it for the others; that caller just gets ctx.Err(). Errors are handed to
// every waiting caller and are not stored.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[T]) (T, error) {
	if value, ok := c.Get(key); ok {
		cacheRequests.WithLabelValues(key, "hit").Inc()
		return value, nil
	}
	cacheRequests.WithLabelValues(key, "miss").Inc()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (result interface{}, err error) {
		// A previous flight may have stored the value after our first lookup
		if value, ok := c.Get(key); ok {
			return value, nil
		}

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrComputePanic, r)
			}
			if err != nil {
				cacheComputations.WithLabelValues(key, "error").Inc()
				log.WithFields(log.Fields{
					"key":   key,
					"error": err,
				}).Error("Cache computation failed")
			}
		}()

		value, err := compute(detached)
		if err != nil {
			return nil, err
		}

		c.Set(key, value)
		cacheComputations.WithLabelValues(key, "ok").Inc()
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
