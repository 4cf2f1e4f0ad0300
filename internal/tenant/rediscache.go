package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/virelia/tenantgate/internal/observability"
)

const redisKeyPrefix = "tenantgate:memberships:"

// RedisCache is a MembershipCache backed by Redis, for deployments that run
// more than one instance and want membership revocations seen everywhere at
// once after an invalidation.
//
// Read errors degrade to a cache miss rather than failing the request; the
// source of truth is still queried, only the shortcut is lost.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger observability.Logger
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithRedisLogger sets the cache's logger.
func WithRedisLogger(logger observability.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisCache builds a Redis-backed cache. A non-positive ttl falls back
// to DefaultCacheTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, opts ...RedisCacheOption) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &RedisCache{
		client: client,
		ttl:    ttl,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

// Get returns the cached membership set for userID. Redis failures are
// logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, userID string) ([]Summary, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Warn("membership cache read failed, treating as miss",
			observability.String("user_id", userID),
			observability.Error(err))
		return nil, false, nil
	}

	var tenants []Summary
	if err := json.Unmarshal(raw, &tenants); err != nil {
		c.logger.Warn("membership cache entry is corrupt, dropping",
			observability.String("user_id", userID),
			observability.Error(err))
		_ = c.client.Del(ctx, redisKey(userID)).Err()
		return nil, false, nil
	}
	return tenants, true, nil
}

// Set stores the membership set for userID for the cache's TTL.
func (c *RedisCache) Set(ctx context.Context, userID string, tenants []Summary) error {
	raw, err := json.Marshal(tenants)
	if err != nil {
		return fmt.Errorf("encode memberships: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store memberships: %w", err)
	}
	return nil
}

// Invalidate drops the entry for userID.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("drop memberships: %w", err)
	}
	return nil
}

var _ MembershipCache = (*RedisCache)(nil)
