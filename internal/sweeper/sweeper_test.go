package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/memstore"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

type capturePublisher struct {
	mu      sync.Mutex
	changes []domain.SeatStateChanged
}

func (p *capturePublisher) Publish(ctx context.Context, changes ...domain.SeatStateChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, changes...)
	return nil
}

func (p *capturePublisher) all() []domain.SeatStateChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SeatStateChanged, len(p.changes))
	copy(out, p.changes)
	return out
}

type captureLocker struct {
	lock.Noop
	released []string
}

func (l *captureLocker) Release(ctx context.Context, key, owner string) error {
	l.released = append(l.released, key)
	return nil
}

type failStore struct{}

func (failStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errors.New("db unavailable")
}

func seedSeat(st *memstore.Store, id string, status domain.SeatStatus) {
	now := time.Now().UTC()
	st.SeedSeats(domain.Seat{
		SeatID:    id,
		Floor:     1,
		GridRow:   1,
		GridCol:   1,
		Zone:      "main",
		Tier:      "A",
		Price:     1280,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func TestSweepOnceReleasesExpiredHolds(t *testing.T) {
	st := memstore.New()
	locker := &captureLocker{}
	pub := &capturePublisher{}
	sw := New(st, locker, pub, time.Second, observability.NewLogger())

	now := time.Now().UTC()
	seedSeat(st, "S1", domain.SeatAvailable)
	st.SeedHold(domain.Hold{SeatID: "S1", HolderID: "h1", ExpiresAt: now.Add(-time.Second), CreatedAt: now.Add(-time.Minute)})
	seedSeat(st, "S2", domain.SeatAvailable)
	st.SeedHold(domain.NewHold("S2", "h2", now, time.Minute))
	// S3 has an expired hold but was sold out from under it.
	st.SeedHold(domain.Hold{SeatID: "S3", HolderID: "h3", ExpiresAt: now.Add(-time.Second), CreatedAt: now.Add(-time.Minute)})
	seedSeat(st, "S3", domain.SeatSold)

	released, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, released)

	seat, _ := st.Seat("S1")
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	_, ok := st.Hold("S1")
	assert.False(t, ok)

	// The active hold survives untouched.
	seat, _ = st.Seat("S2")
	assert.Equal(t, domain.SeatHold, seat.Status)
	_, ok = st.Hold("S2")
	assert.True(t, ok)

	// The sold seat keeps its status but loses the stale hold and lock.
	seat, _ = st.Seat("S3")
	assert.Equal(t, domain.SeatSold, seat.Status)
	_, ok = st.Hold("S3")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{lock.SeatKey("S1"), lock.SeatKey("S3")}, locker.released)

	changes := pub.all()
	require.Len(t, changes, 1)
	assert.Equal(t, "S1", changes[0].SeatID)
	assert.Equal(t, domain.SeatHold, changes[0].From)
	assert.Equal(t, domain.SeatAvailable, changes[0].To)
	assert.Equal(t, domain.SystemActor, changes[0].By)
}

func TestSweepOnceNothingExpired(t *testing.T) {
	st := memstore.New()
	pub := &capturePublisher{}
	sw := New(st, lock.Noop{}, pub, time.Second, observability.NewLogger())

	seedSeat(st, "S1", domain.SeatAvailable)
	st.SeedHold(domain.NewHold("S1", "h1", time.Now().UTC(), time.Minute))

	released, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, 1, st.HoldCount())
	assert.Empty(t, pub.all())
}

func TestSweepOnceStoreError(t *testing.T) {
	sw := New(failStore{}, lock.Noop{}, &capturePublisher{}, time.Second, observability.NewLogger())

	_, err := sw.SweepOnce(context.Background())
	require.Error(t, err)
}

func TestNewEnforcesMinimumInterval(t *testing.T) {
	sw := New(memstore.New(), lock.Noop{}, &capturePublisher{}, 10*time.Millisecond, observability.NewLogger())
	assert.Equal(t, time.Second, sw.interval)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sw := New(memstore.New(), lock.Noop{}, &capturePublisher{}, time.Second, observability.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
