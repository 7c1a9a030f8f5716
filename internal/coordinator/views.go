package coordinator

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

// SeatWithHold pairs a seat with its active hold, if any.
type SeatWithHold struct {
	Seat domain.Seat
	Hold *domain.Hold
}

// SeatsByFloor returns the floor's seats in grid order with any active
// hold attached.
func (c *Coordinator) SeatsByFloor(ctx context.Context, floor int) ([]SeatWithHold, error) {
	if floor < 1 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "floor must be at least 1")
	}
	views := []SeatWithHold{}
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		seats, err := tx.ListSeatsByFloor(ctx, floor)
		if err != nil {
			return err
		}
		ids := make([]string, len(seats))
		for i, seat := range seats {
			ids[i] = seat.SeatID
		}
		holds, err := tx.ListHoldsBySeats(ctx, ids)
		if err != nil {
			return err
		}
		bySeat := holdsBySeat(holds)
		views = make([]SeatWithHold, len(seats))
		for i, seat := range seats {
			views[i] = SeatWithHold{Seat: seat, Hold: bySeat[seat.SeatID]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (c *Coordinator) SeatByID(ctx context.Context, seatID string) (*SeatWithHold, error) {
	var view SeatWithHold
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		seat, err := tx.GetSeat(ctx, seatID)
		if err != nil {
			return err
		}
		view.Seat = *seat
		hold, err := tx.GetHold(ctx, seatID)
		switch {
		case err == nil:
			view.Hold = hold
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// TierStats is one per-tier row of the occupancy report. Revenue sums
// the price of SOLD seats only.
type TierStats struct {
	Tier      string
	Available int
	Hold      int
	Sold      int
	Blocked   int
	Revenue   int64
}

type Stats struct {
	Totals  map[domain.SeatStatus]int
	PerTier []TierStats
}

// Stats aggregates seat counts by status and by tier. Tier rows appear
// in first-seen scan order; seats without a tier report as "UNKNOWN".
func (c *Coordinator) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Totals: map[domain.SeatStatus]int{
			domain.SeatAvailable: 0,
			domain.SeatHold:      0,
			domain.SeatSold:      0,
			domain.SeatBlocked:   0,
		},
		PerTier: []TierStats{},
	}
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		seats, err := tx.ListAllSeats(ctx)
		if err != nil {
			return err
		}
		index := make(map[string]int)
		for _, seat := range seats {
			stats.Totals[seat.Status]++
			tier := seat.Tier
			if tier == "" {
				tier = "UNKNOWN"
			}
			i, ok := index[tier]
			if !ok {
				i = len(stats.PerTier)
				index[tier] = i
				stats.PerTier = append(stats.PerTier, TierStats{Tier: tier})
			}
			row := &stats.PerTier[i]
			switch seat.Status {
			case domain.SeatAvailable:
				row.Available++
			case domain.SeatHold:
				row.Hold++
			case domain.SeatSold:
				row.Sold++
				row.Revenue += seat.Price
			case domain.SeatBlocked:
				row.Blocked++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func holdsBySeat(holds []domain.Hold) map[string]*domain.Hold {
	bySeat := make(map[string]*domain.Hold, len(holds))
	for i := range holds {
		bySeat[holds[i].SeatID] = &holds[i]
	}
	return bySeat
}
