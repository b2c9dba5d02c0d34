// Package cache implements the ContextCache (spec.md §4.1 component C):
// a TTL'd per-(symbol, data-type) data cache, a query-history ring with
// cosine-similarity lookup, and the vectorstore query-result cache — all
// backed by Redis, following the teacher's internal/skills/redis_cache.go
// connect/ping/Close shape.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client wraps a Redis connection shared by ContextCache, QueryHistoryRing,
// and VectorQueryCache.
type Client struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewClient connects to Redis at addr and verifies it with a ping, mirroring
// the teacher's NewRedisSkillsCache.
func NewClient(addr string, log zerolog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Client{rdb: rdb, log: log}, nil
}

// NewClientFrom wraps an already-constructed *redis.Client, for callers
// (tests, cmd/finyx) that share one connection pool across ContextCache and
// the source rate limiters.
func NewClientFrom(rdb *redis.Client, log zerolog.Logger) *Client {
	return &Client{rdb: rdb, log: log}
}

// Raw exposes the underlying client for components (e.g. internal/sources'
// RateLimiter) that need direct SetNX/PTTL access.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
