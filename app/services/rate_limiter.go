package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit describes a fixed-window budget for one class of traffic
type Limit struct {
	Bucket string
	Max    int64
	Window time.Duration
}

// CounterStore increments windowed counters for the rate limiter
type CounterStore interface {
	// Incr increments the counter for key and returns the new value. The
	// key expires after window when first created.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter answers whether a client may proceed under a given limit
type RateLimiter interface {
	// Allow reports whether clientKey is within limit for the current
	// window. Store errors fail open so traffic is never dropped by an
	// unavailable backend.
	Allow(ctx context.Context, limit Limit, clientKey string) bool
}

// FixedWindowLimiter implements RateLimiter with fixed windows aligned to
// the epoch, so all instances sharing a store agree on window boundaries.
type FixedWindowLimiter struct {
	store   CounterStore
	enabled bool
	now     func() time.Time
}

// NewFixedWindowLimiter creates a limiter backed by store. When enabled is
// false every call passes through.
func NewFixedWindowLimiter(store CounterStore, enabled bool) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:   store,
		enabled: enabled && store != nil,
		now:     time.Now,
	}
}

// WithClock overrides the limiter's clock, for tests
func (l *FixedWindowLimiter) WithClock(now func() time.Time) *FixedWindowLimiter {
	l.now = now
	return l
}

// Allow implements RateLimiter
func (l *FixedWindowLimiter) Allow(ctx context.Context, limit Limit, clientKey string) bool {
	if !l.enabled || limit.Max <= 0 {
		return true
	}

	// Sub-second windows would zero the divisor; clamp to one second
	windowSecs := int64(limit.Window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	window := l.now().Unix() / windowSecs
	key := fmt.Sprintf("ratelimit:%s:%s:%d", limit.Bucket, clientKey, window)

	count, err := l.store.Incr(ctx, key, limit.Window)
	if err != nil {
		return true
	}
	return count <= limit.Max
}

// RedisCounterStore implements CounterStore on redis
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a redis-backed counter store
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "peakself:"
	}
	return &RedisCounterStore{client: client, prefix: prefix}
}

// Incr implements CounterStore
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.prefix+key)
	// Windowed keys carry their window as TTL; refreshing it on every hit
	// is harmless because the key name already pins the window.
	pipe.Expire(ctx, s.prefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryCounterStore implements CounterStore in process memory. It serves
// single-instance deployments and tests.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// WithClock overrides the store's clock, for tests
func (s *MemoryCounterStore) WithClock(now func() time.Time) *MemoryCounterStore {
	s.now = now
	return s
}

// Incr implements CounterStore
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
		// Expired entries for other keys pile up between windows; sweep
		// them while we hold the lock.
		for k, v := range s.counters {
			if now.After(v.expiresAt) {
				delete(s.counters, k)
			}
		}
	}
	c.value++
	return c.value, nil
}
