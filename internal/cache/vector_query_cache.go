package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finyx/internal/vectorstore"
)

// VectorQueryCache implements vectorstore.QueryCache over the shared Redis
// client (spec.md §5: "Vector-store query cache: TTL 3600 s"). It satisfies
// vectorstore.QueryCache structurally; internal/vectorstore never imports
// internal/cache.
type VectorQueryCache struct {
	client *Client
}

// NewVectorQueryCache wraps client for use as a vectorstore.QueryCache.
func NewVectorQueryCache(client *Client) *VectorQueryCache {
	return &VectorQueryCache{client: client}
}

func vectorQueryCacheKey(key string) string {
	return fmt.Sprintf("finyx:vecquery:%s", key)
}

// Get implements vectorstore.QueryCache.
func (v *VectorQueryCache) Get(ctx context.Context, key string) ([]vectorstore.Result, bool) {
	if v == nil || v.client == nil {
		return nil, false
	}
	raw, err := v.client.rdb.Get(ctx, vectorQueryCacheKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var results []vectorstore.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

// Set implements vectorstore.QueryCache.
func (v *VectorQueryCache) Set(ctx context.Context, key string, ttl time.Duration, results []vectorstore.Result) {
	if v == nil || v.client == nil {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = vectorstore.QueryCacheTTL
	}
	_ = v.client.rdb.Set(ctx, vectorQueryCacheKey(key), raw, ttl).Err()
}
