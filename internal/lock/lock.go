// Package lock defines the optional cross-process seat lock. The
// coordinator calls it on every hold-path write; deployments with a
// single coordinator process run the Noop implementation and rely on
// the store's per-seat constraints alone.
package lock

import (
	"context"
	"time"
)

type Locker interface {
	// Acquire is set-if-absent with a TTL. false means another owner
	// currently holds the key.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release deletes the key only if owner still holds it, so a lock
	// re-acquired after this owner's TTL lapsed is left alone.
	Release(ctx context.Context, key, owner string) error
	// Refresh extends the TTL only if owner still holds the key.
	Refresh(ctx context.Context, key, owner string, ttl time.Duration) error
}

func SeatKey(seatID string) string {
	return "lock:seat:" + seatID
}

// Noop always acquires. Correct only while a single process coordinates
// holds; running several coordinator instances with Noop reopens the
// check-then-write race between their transactions.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (Noop) Release(ctx context.Context, key, owner string) error {
	return nil
}

func (Noop) Refresh(ctx context.Context, key, owner string, ttl time.Duration) error {
	return nil
}
