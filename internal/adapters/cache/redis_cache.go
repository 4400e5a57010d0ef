package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

const redisKeyPrefix = "triage:cache:"

// redisEnvelope is the value stored under each cache key
type redisEnvelope struct {
	Result    json.RawMessage `json:"result"`
	LastSeen  int64           `json:"last_seen"`
	ExpiresAt int64           `json:"expires_at"`
}

// RedisCache is a Redis implementation of the CacheRepository interface.
// Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a new Redis cache on an already connected client
func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves a cached entry for a fingerprint
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query redis cache: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cache envelope: %w", err)
	}

	expiresAt := time.UnixMilli(env.ExpiresAt)
	if time.Now().After(expiresAt) {
		return nil, ErrExpired
	}

	result, err := decodeResult(env.Result)
	if err != nil {
		return nil, err
	}

	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Result:      result,
		LastSeen:    time.UnixMilli(env.LastSeen),
		ExpiresAt:   expiresAt,
	}, nil
}

// Set stores a cache entry with a TTL matching its expiry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}

	data, err := json.Marshal(redisEnvelope{
		Result:    payload,
		LastSeen:  entry.LastSeen.UnixMilli(),
		ExpiresAt: entry.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache envelope: %w", err)
	}

	if err := c.client.Set(ctx, redisKeyPrefix+entry.Fingerprint, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store redis cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("failed to delete redis cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis evicts expired keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	c.logger.Debug("Skipping cache cleanup, redis expires keys by TTL")
	return nil
}
