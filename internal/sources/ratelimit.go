package sources

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a minimum inter-call delay for one source, shared
// process-wide across every agent that calls it (spec.md §5 "Shared
// resources"). The in-process variant is always available; when a redis
// client is supplied, Wait additionally coordinates across process
// instances via a short-lived key, so horizontally scaled deployments still
// honor the provider's free-tier ceiling (e.g. Alpha Vantage's 5 calls/min).
type RateLimiter struct {
	minInterval time.Duration
	mu          sync.Mutex
	last        time.Time

	redisClient *redis.Client
	redisKey    string
}

// NewRateLimiter builds a RateLimiter enforcing minInterval between calls.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval}
}

// WithRedis attaches cross-process coordination under key.
func (r *RateLimiter) WithRedis(client *redis.Client, key string) *RateLimiter {
	r.redisClient = client
	r.redisKey = key
	return r
}

// Wait blocks until minInterval has elapsed since the previous call
// returned, honoring ctx cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.redisClient != nil {
		return r.waitRedis(ctx)
	}
	return r.waitLocal(ctx)
}

func (r *RateLimiter) waitLocal(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wait := time.Until(r.last.Add(r.minInterval))
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.last = time.Now()
	return nil
}

// waitRedis uses SET NX PX as a distributed mutex: the first caller to
// claim the key within minInterval proceeds immediately, everyone else
// backs off and retries. Falls back to the local limiter on redis errors
// so a cache outage never blocks finance-data fetches indefinitely.
func (r *RateLimiter) waitRedis(ctx context.Context) error {
	for {
		ok, err := r.redisClient.SetNX(ctx, r.redisKey, "1", r.minInterval).Result()
		if err != nil {
			return r.waitLocal(ctx)
		}
		if ok {
			return nil
		}
		ttl, err := r.redisClient.PTTL(ctx, r.redisKey).Result()
		if err != nil || ttl <= 0 {
			ttl = r.minInterval
		}
		t := time.NewTimer(ttl)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
