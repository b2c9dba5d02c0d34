package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ContextCacheTTL is the default TTL for per-(symbol, dataType) entries
// (spec.md §5: "ContextCache TTL: 86400 s").
const ContextCacheTTL = 24 * time.Hour

// ContextCache is the data-fetch result cache keyed by (symbol, dataType),
// consulted by each data-fetching task before calling UnifiedDataClient
// (spec.md §4.1 component C, §5). It is a thin JSON-over-Redis layer in the
// shape of the teacher's RedisSkillsCache (internal/skills/redis_cache.go):
// Get unmarshals into a caller-provided pointer, Set marshals with a TTL,
// and a nil receiver is always a safe no-op cache miss.
type ContextCache struct {
	client *Client
	ttl    time.Duration
}

// NewContextCache wraps client with the default 24h TTL. Pass ttl <= 0 to
// use the default.
func NewContextCache(client *Client, ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = ContextCacheTTL
	}
	return &ContextCache{client: client, ttl: ttl}
}

func contextCacheKey(symbol, dataType string) string {
	return fmt.Sprintf("finyx:context:%s:%s", symbol, dataType)
}

// GetData reports whether (symbol, dataType) was cached and, if so,
// unmarshals it into dest. A nil receiver or cache miss both return false
// with no error, so callers can unconditionally fall through to the live
// fetch path.
func (c *ContextCache) GetData(ctx context.Context, symbol, dataType string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.rdb.Get(ctx, contextCacheKey(symbol, dataType)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("cache: get %s/%s: %w", symbol, dataType, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s/%s: %w", symbol, dataType, err)
	}
	return true, nil
}

// SetData writes value for (symbol, dataType) with the cache's TTL. A nil
// receiver is a no-op, matching the teacher's nil-safe cache methods.
func (c *ContextCache) SetData(ctx context.Context, symbol, dataType string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s/%s: %w", symbol, dataType, err)
	}
	if err := c.client.rdb.Set(ctx, contextCacheKey(symbol, dataType), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s/%s: %w", symbol, dataType, err)
	}
	return nil
}

// Invalidate drops the cached entry for (symbol, dataType), mirroring the
// teacher's Scan+Del invalidation helper for a single known key.
func (c *ContextCache) Invalidate(ctx context.Context, symbol, dataType string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.rdb.Del(ctx, contextCacheKey(symbol, dataType)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %s/%s: %w", symbol, dataType, err)
	}
	return nil
}
