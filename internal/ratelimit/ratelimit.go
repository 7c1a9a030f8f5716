package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window request counter over Redis. A nil client
// disables limiting, which is how deployments without Redis run.
type Limiter struct {
	client *redis.Client
}

func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow counts one request against the key's current window and
// reports whether it fits the rate. Redis being unreachable denies the
// request rather than opening the gate.
func (l *Limiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	if l.client == nil {
		return true
	}
	fullKey := "rl:" + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false
	}
	return incr.Val() <= int64(rate)
}
