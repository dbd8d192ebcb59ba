package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore records that something happened once within a TTL. It backs
// unique-visitor counting and scroll checkpoint dedup.
type MarkerStore interface {
	// MarkOnce sets the marker for key if absent and reports whether this
	// call was the one that set it.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisMarkerStore implements MarkerStore with SET NX EX
type RedisMarkerStore struct {
	client *redis.Client
	prefix string
}

// NewRedisMarkerStore creates a redis-backed marker store
func NewRedisMarkerStore(client *redis.Client, prefix string) *RedisMarkerStore {
	if prefix == "" {
		prefix = "peakself:"
	}
	return &RedisMarkerStore{client: client, prefix: prefix}
}

// MarkOnce implements MarkerStore
func (s *RedisMarkerStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+"marker:"+key, 1, ttl).Result()
}

// MemoryMarkerStore implements MarkerStore in process memory, for
// single-instance deployments and tests
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
	now     func() time.Time
}

// NewMemoryMarkerStore creates an in-memory marker store
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{
		markers: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the store's clock, for tests
func (s *MemoryMarkerStore) WithClock(now func() time.Time) *MemoryMarkerStore {
	s.now = now
	return s
}

// MarkOnce implements MarkerStore
func (s *MemoryMarkerStore) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.markers[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.markers[key] = now.Add(ttl)

	for k, expiresAt := range s.markers {
		if now.After(expiresAt) {
			delete(s.markers, k)
		}
	}
	return true, nil
}
