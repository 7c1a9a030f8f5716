package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Owner checks happen server-side so a release can never delete a lock
// the owner already lost to TTL expiry and re-acquisition.
const (
	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`
	refreshScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("expire", KEYS[1], ARGV[2]) end return 0`
)

// Locker implements lock.Locker on a shared Redis.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	res := l.client.SetNX(ctx, key, owner, ttl)
	return res.Val(), res.Err()
}

func (l *Locker) Release(ctx context.Context, key, owner string) error {
	return l.client.Eval(ctx, releaseScript, []string{key}, owner).Err()
}

func (l *Locker) Refresh(ctx context.Context, key, owner string, ttl time.Duration) error {
	return l.client.Eval(ctx, refreshScript, []string{key}, owner, int64(ttl.Seconds())).Err()
}
