// Package memstore is an in-memory store.Store used by unit tests. A
// transaction snapshots all state up front and restores it when the
// callback fails, giving the same commit-or-nothing behavior the crdb
// adapter gets from the database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

type Store struct {
	mu         sync.Mutex
	seats      map[string]domain.Seat
	holds      map[string]domain.Hold
	purchases  map[string]domain.Purchase
	nextItemID int64
}

func New() *Store {
	return &Store{
		seats:      make(map[string]domain.Seat),
		holds:      make(map[string]domain.Hold),
		purchases:  make(map[string]domain.Purchase),
		nextItemID: 1,
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := copySeats(s.seats)
	holds := copyHolds(s.holds)
	purchases := copyPurchases(s.purchases)
	nextItemID := s.nextItemID

	if err := fn(&memTx{s: s}); err != nil {
		s.seats = seats
		s.holds = holds
		s.purchases = purchases
		s.nextItemID = nextItemID
		return err
	}
	return nil
}

// SeedSeats loads seats directly, outside any transaction.
func (s *Store) SeedSeats(seats ...domain.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		s.seats[seat.SeatID] = seat
	}
}

// SeedHold plants a hold row directly and marks the seat held, which
// lets tests start from an already-expired hold.
func (s *Store) SeedHold(hold domain.Hold) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[hold.SeatID] = hold
	if seat, ok := s.seats[hold.SeatID]; ok {
		seat.Status = domain.SeatHold
		s.seats[hold.SeatID] = seat
	}
}

func (s *Store) Seat(seatID string) (domain.Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	return seat, ok
}

func (s *Store) Hold(seatID string) (domain.Hold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, ok := s.holds[seatID]
	return hold, ok
}

func (s *Store) Purchase(requestID string) (domain.Purchase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[requestID]
	if ok {
		p.Items = append([]domain.PurchaseItem(nil), p.Items...)
	}
	return p, ok
}

func (s *Store) HoldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holds)
}

func (s *Store) PurchaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.purchases)
}

func copySeats(in map[string]domain.Seat) map[string]domain.Seat {
	out := make(map[string]domain.Seat, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyHolds(in map[string]domain.Hold) map[string]domain.Hold {
	out := make(map[string]domain.Hold, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyPurchases(in map[string]domain.Purchase) map[string]domain.Purchase {
	out := make(map[string]domain.Purchase, len(in))
	for k, v := range in {
		v.Items = append([]domain.PurchaseItem(nil), v.Items...)
		out[k] = v
	}
	return out
}

// memTx operates on the parent maps directly; WithTx holds the store
// lock for the whole transaction and rolls back via the snapshot.
type memTx struct {
	s *Store
}

func (t *memTx) GetSeat(ctx context.Context, seatID string) (*domain.Seat, error) {
	seat, ok := t.s.seats[seatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &seat, nil
}

func (t *memTx) ListSeats(ctx context.Context, seatIDs []string) ([]domain.Seat, error) {
	seen := make(map[string]bool, len(seatIDs))
	var seats []domain.Seat
	for _, id := range seatIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if seat, ok := t.s.seats[id]; ok {
			seats = append(seats, seat)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })
	return seats, nil
}

func (t *memTx) ListSeatsByFloor(ctx context.Context, floor int) ([]domain.Seat, error) {
	var seats []domain.Seat
	for _, seat := range t.s.seats {
		if seat.Floor == floor {
			seats = append(seats, seat)
		}
	}
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].GridRow != seats[j].GridRow {
			return seats[i].GridRow < seats[j].GridRow
		}
		return seats[i].GridCol < seats[j].GridCol
	})
	return seats, nil
}

func (t *memTx) ListAllSeats(ctx context.Context) ([]domain.Seat, error) {
	var seats []domain.Seat
	for _, seat := range t.s.seats {
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })
	return seats, nil
}

func (t *memTx) UpdateSeat(ctx context.Context, seat *domain.Seat) error {
	if _, ok := t.s.seats[seat.SeatID]; !ok {
		return domain.ErrNotFound
	}
	t.s.seats[seat.SeatID] = *seat
	return nil
}

func (t *memTx) CreateSeat(ctx context.Context, seat domain.Seat) error {
	if _, ok := t.s.seats[seat.SeatID]; ok {
		return domain.ErrConflict
	}
	t.s.seats[seat.SeatID] = seat
	return nil
}

func (t *memTx) GetHold(ctx context.Context, seatID string) (*domain.Hold, error) {
	hold, ok := t.s.holds[seatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &hold, nil
}

func (t *memTx) ListHoldsByHolder(ctx context.Context, holderID string, seatIDs []string) ([]domain.Hold, error) {
	var filter map[string]bool
	if seatIDs != nil {
		filter = make(map[string]bool, len(seatIDs))
		for _, id := range seatIDs {
			filter[id] = true
		}
	}
	var holds []domain.Hold
	for _, hold := range t.s.holds {
		if hold.HolderID != holderID {
			continue
		}
		if filter != nil && !filter[hold.SeatID] {
			continue
		}
		holds = append(holds, hold)
	}
	sortHolds(holds)
	return holds, nil
}

func (t *memTx) ListHoldsBySeats(ctx context.Context, seatIDs []string) ([]domain.Hold, error) {
	var holds []domain.Hold
	for _, id := range seatIDs {
		if hold, ok := t.s.holds[id]; ok {
			holds = append(holds, hold)
		}
	}
	sortHolds(holds)
	return holds, nil
}

func (t *memTx) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	var holds []domain.Hold
	for _, hold := range t.s.holds {
		if hold.Expired(now) {
			holds = append(holds, hold)
		}
	}
	sortHolds(holds)
	return holds, nil
}

func (t *memTx) CreateHold(ctx context.Context, hold domain.Hold) error {
	if _, ok := t.s.holds[hold.SeatID]; ok {
		return domain.ErrConflict
	}
	t.s.holds[hold.SeatID] = hold
	return nil
}

func (t *memTx) UpdateHoldExpiry(ctx context.Context, seatID string, expiresAt time.Time) error {
	hold, ok := t.s.holds[seatID]
	if !ok {
		return domain.ErrNotFound
	}
	hold.ExpiresAt = expiresAt
	t.s.holds[seatID] = hold
	return nil
}

func (t *memTx) DeleteHold(ctx context.Context, seatID string) error {
	delete(t.s.holds, seatID)
	return nil
}

func (t *memTx) GetPurchase(ctx context.Context, requestID string) (*domain.Purchase, error) {
	p, ok := t.s.purchases[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.Items = append([]domain.PurchaseItem(nil), p.Items...)
	return &p, nil
}

func (t *memTx) CreatePurchase(ctx context.Context, purchase domain.Purchase) error {
	if _, ok := t.s.purchases[purchase.RequestID]; ok {
		return domain.ErrConflict
	}
	items := make([]domain.PurchaseItem, len(purchase.Items))
	for i, item := range purchase.Items {
		item.ID = t.s.nextItemID
		t.s.nextItemID++
		items[i] = item
	}
	purchase.Items = items
	t.s.purchases[purchase.RequestID] = purchase
	return nil
}

func sortHolds(holds []domain.Hold) {
	sort.Slice(holds, func(i, j int) bool { return holds[i].SeatID < holds[j].SeatID })
}
