package coordinator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

// SeatUpdate carries the admin-editable seat fields. Nil means leave
// the field alone.
type SeatUpdate struct {
	Status *domain.SeatStatus
	Tier   *string
	Price  *int64
}

func (u SeatUpdate) Empty() bool {
	return u.Status == nil && u.Tier == nil && u.Price == nil
}

func (u SeatUpdate) validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return errors.Wrapf(domain.ErrInvalidInput, "unknown status %q", string(*u.Status))
	}
	if u.Price != nil && *u.Price < 0 {
		return errors.Wrap(domain.ErrInvalidInput, "price must not be negative")
	}
	return nil
}

type AdminUpdateResult struct {
	Updated []SeatWithHold
	Missing []string
}

type statusChange struct {
	seatID   string
	from, to domain.SeatStatus
}

// AdminUpdateSeats applies one update to every named seat in a single
// transaction. Duplicate ids collapse to their first occurrence and
// unknown ids are reported in Missing. Seats whose fields already
// match the update are left out of Updated. Moving a seat to any
// status other than HOLD force-releases its hold; a tier change
// recomputes the price from the tier table unless the update sets a
// price explicitly. Status changes emit events with by="admin" after
// commit.
func (c *Coordinator) AdminUpdateSeats(ctx context.Context, seatIDs []string, update SeatUpdate) (*AdminUpdateResult, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	ids := dedupe(seatIDs)
	result := &AdminUpdateResult{Updated: []SeatWithHold{}, Missing: []string{}}
	var changes []statusChange

	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		seats, err := tx.ListSeats(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[string]*domain.Seat, len(seats))
		for i := range seats {
			found[seats[i].SeatID] = &seats[i]
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				result.Missing = append(result.Missing, id)
			}
		}

		now := time.Now().UTC()
		var changedIDs []string
		for _, id := range ids {
			seat, ok := found[id]
			if !ok {
				continue
			}
			changed, prevStatus, err := c.applySeatUpdate(ctx, tx, seat, update, now)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			changedIDs = append(changedIDs, id)
			if prevStatus != nil {
				changes = append(changes, statusChange{seatID: id, from: *prevStatus, to: seat.Status})
			}
		}
		if len(changedIDs) == 0 {
			return nil
		}

		holds, err := tx.ListHoldsBySeats(ctx, changedIDs)
		if err != nil {
			return err
		}
		bySeat := holdsBySeat(holds)
		for _, id := range changedIDs {
			result.Updated = append(result.Updated, SeatWithHold{Seat: *found[id], Hold: bySeat[id]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, change := range changes {
		c.publish(ctx, []string{change.seatID}, change.from, change.to, domain.AdminActor)
	}
	return result, nil
}

// applySeatUpdate mutates the seat in place and persists it when
// anything actually changed. It returns the previous status when the
// status changed, so the caller can emit the transition event.
func (c *Coordinator) applySeatUpdate(ctx context.Context, tx store.Tx, seat *domain.Seat, update SeatUpdate, now time.Time) (bool, *domain.SeatStatus, error) {
	changed := false
	var prevStatus *domain.SeatStatus

	if update.Status != nil && seat.Status != *update.Status {
		prev := seat.Status
		prevStatus = &prev
		seat.Status = *update.Status
		seat.UpdatedAt = now
		changed = true
		if *update.Status != domain.SeatHold {
			if _, err := c.forceReleaseSeat(ctx, tx, seat.SeatID); err != nil {
				return false, nil, err
			}
		}
	}

	if update.Tier != nil {
		if seat.Tier != *update.Tier {
			seat.Tier = *update.Tier
			seat.UpdatedAt = now
			changed = true
		}
		if update.Price == nil {
			calculated := c.prices.PriceFor(*update.Tier)
			if seat.Price != calculated {
				seat.Price = calculated
				seat.UpdatedAt = now
				changed = true
			}
		}
	}

	if update.Price != nil && seat.Price != *update.Price {
		seat.Price = *update.Price
		seat.UpdatedAt = now
		changed = true
	}

	if changed {
		if err := tx.UpdateSeat(ctx, seat); err != nil {
			return false, nil, err
		}
	}
	return changed, prevStatus, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
