package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnalyticsCache is a read-through cache for computed analytics payloads.
// A nil or disabled cache degrades to computing every call.
type AnalyticsCache interface {
	// GetOrCompute unmarshals the cached value for key into dest, or runs
	// compute, stores its result with the given TTL, and unmarshals that.
	// A compute error is returned as-is; cache errors fall through to compute.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest any, compute func() (any, error)) error
	// Invalidate deletes all keys matching the given patterns. Patterns
	// without a '*' are deleted directly.
	Invalidate(ctx context.Context, patterns ...string)
}

// RedisAnalyticsCache implements AnalyticsCache on a redis client
type RedisAnalyticsCache struct {
	client  *redis.Client
	prefix  string
	enabled bool
}

// NewRedisAnalyticsCache creates a redis-backed analytics cache. When client
// is nil or enabled is false every read goes straight to compute.
func NewRedisAnalyticsCache(client *redis.Client, prefix string, enabled bool) *RedisAnalyticsCache {
	if prefix == "" {
		prefix = "peakself:"
	}
	return &RedisAnalyticsCache{
		client:  client,
		prefix:  prefix,
		enabled: enabled && client != nil,
	}
}

func (c *RedisAnalyticsCache) key(key string) string {
	return c.prefix + "analytics:" + key
}

// GetOrCompute implements AnalyticsCache
func (c *RedisAnalyticsCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest any, compute func() (any, error)) error {
	if c.enabled {
		raw, err := c.client.Get(ctx, c.key(key)).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
				return nil
			}
			// Corrupt entry, drop it and recompute
			_ = c.client.Del(ctx, c.key(key)).Err()
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("analytics cache read failed for %s: %v", key, err)
		}
	}

	value, err := compute()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics payload for %s: %w", key, err)
	}

	if c.enabled {
		if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
			log.Printf("analytics cache write failed for %s: %v", key, err)
		}
	}

	// Round-trip through JSON so cached and fresh reads see identical shapes
	return json.Unmarshal(raw, dest)
}

// Invalidate implements AnalyticsCache
func (c *RedisAnalyticsCache) Invalidate(ctx context.Context, patterns ...string) {
	if !c.enabled {
		return
	}

	for _, pattern := range patterns {
		full := c.key(pattern)
		if !strings.Contains(pattern, "*") {
			if err := c.client.Del(ctx, full).Err(); err != nil {
				log.Printf("analytics cache delete failed for %s: %v", pattern, err)
			}
			continue
		}

		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, full, 100).Result()
			if err != nil {
				log.Printf("analytics cache scan failed for %s: %v", pattern, err)
				break
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					log.Printf("analytics cache delete failed for %s: %v", pattern, err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
}
