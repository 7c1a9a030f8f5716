// Package coordinator arbitrates seat holds, releases, purchase
// confirmation and admin overrides. Each public operation runs inside
// one store transaction; per-seat conflicts are reported as result
// list membership and never abort the seats that already succeeded in
// the same call. Events go out after commit and never affect the
// returned result.
package coordinator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

type Coordinator struct {
	store  store.Store
	locker lock.Locker
	pub    events.Publisher
	logger observability.Logger
	ttl    time.Duration
	prices config.TierPrices
}

func New(st store.Store, locker lock.Locker, pub events.Publisher, cfg *config.Config, logger observability.Logger) *Coordinator {
	return &Coordinator{
		store:  st,
		locker: locker,
		pub:    pub,
		logger: logger,
		ttl:    cfg.HoldTTL,
		prices: cfg.TierPrices,
	}
}

// HoldResult is the per-seat outcome of one hold call. ExpiresAt is
// reported when the held bucket is non-empty, falling back to the
// refreshed bucket; a single timestamp is computed per call, so the
// preference decides reporting, never the value.
type HoldResult struct {
	Held      []string
	Refreshed []string
	Conflicts []string
	ExpiresAt *time.Time
}

// RequestHold claims the seats for holderID in input order. A missing
// seat, a SOLD or BLOCKED seat, another holder's hold, or a failed
// lock acquire each conflict that seat only. The holder's own existing
// holds are refreshed to a new expiry instead of re-created.
func (c *Coordinator) RequestHold(ctx context.Context, holderID string, seatIDs []string) (*HoldResult, error) {
	result := &HoldResult{Held: []string{}, Refreshed: []string{}, Conflicts: []string{}}
	if len(seatIDs) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	expiresAt := now.Add(c.ttl)

	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		for _, seatID := range seatIDs {
			seat, err := tx.GetSeat(ctx, seatID)
			if errors.Is(err, domain.ErrNotFound) {
				result.Conflicts = append(result.Conflicts, seatID)
				continue
			}
			if err != nil {
				return err
			}
			if seat.Status == domain.SeatSold || seat.Status == domain.SeatBlocked {
				result.Conflicts = append(result.Conflicts, seatID)
				continue
			}

			hold, err := tx.GetHold(ctx, seatID)
			switch {
			case err == nil:
				if hold.HolderID != holderID {
					result.Conflicts = append(result.Conflicts, seatID)
					continue
				}
				if err := tx.UpdateHoldExpiry(ctx, seatID, expiresAt); err != nil {
					return err
				}
				if err := c.locker.Refresh(ctx, lock.SeatKey(seatID), holderID, c.ttl); err != nil {
					c.logger.WithError(err).WithField("seat_id", seatID).Warn("lock refresh failed")
				}
				result.Refreshed = append(result.Refreshed, seatID)
			case errors.Is(err, domain.ErrNotFound):
				ok, aerr := c.locker.Acquire(ctx, lock.SeatKey(seatID), holderID, c.ttl)
				if aerr != nil {
					c.logger.WithError(aerr).WithField("seat_id", seatID).Warn("lock acquire failed")
					result.Conflicts = append(result.Conflicts, seatID)
					continue
				}
				if !ok {
					result.Conflicts = append(result.Conflicts, seatID)
					continue
				}
				if err := tx.CreateHold(ctx, domain.NewHold(seatID, holderID, now, c.ttl)); err != nil {
					return err
				}
				result.Held = append(result.Held, seatID)
			default:
				return err
			}

			seat.Status = domain.SeatHold
			seat.UpdatedAt = now
			if err := tx.UpdateSeat(ctx, seat); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bucket := result.Held
	if len(bucket) == 0 {
		bucket = result.Refreshed
	}
	if len(bucket) > 0 {
		result.ExpiresAt = &expiresAt
	}

	countSeatOps("hold", "held", len(result.Held))
	countSeatOps("hold", "refreshed", len(result.Refreshed))
	countSeatOps("hold", "conflict", len(result.Conflicts))

	c.publish(ctx, result.Held, domain.SeatAvailable, domain.SeatHold, holderID)
	return result, nil
}

// ReleaseByHolder drops the holder's holds and frees their seats.
// seatIDs nil means every hold the holder has; an explicit empty list
// releases nothing. Seats a different holder holds are never touched,
// because the selection is by holder. Only seats still in HOLD flip
// back to AVAILABLE; the hold row and lock go away regardless.
func (c *Coordinator) ReleaseByHolder(ctx context.Context, holderID string, seatIDs []string) ([]string, error) {
	released := []string{}
	if seatIDs != nil && len(seatIDs) == 0 {
		return released, nil
	}

	now := time.Now().UTC()
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		holds, err := tx.ListHoldsByHolder(ctx, holderID, seatIDs)
		if err != nil {
			return err
		}
		for _, hold := range holds {
			seat, err := tx.GetSeat(ctx, hold.SeatID)
			switch {
			case err == nil && seat.Status == domain.SeatHold:
				seat.Status = domain.SeatAvailable
				seat.UpdatedAt = now
				if err := tx.UpdateSeat(ctx, seat); err != nil {
					return err
				}
				released = append(released, hold.SeatID)
			case err != nil && !errors.Is(err, domain.ErrNotFound):
				return err
			}
			if err := c.locker.Release(ctx, lock.SeatKey(hold.SeatID), hold.HolderID); err != nil {
				c.logger.WithError(err).WithField("seat_id", hold.SeatID).Warn("lock release failed")
			}
			if err := tx.DeleteHold(ctx, hold.SeatID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	countSeatOps("release", "released", len(released))

	c.publish(ctx, released, domain.SeatHold, domain.SeatAvailable, holderID)
	return released, nil
}

type ConfirmResult struct {
	Confirmed []string
	Skipped   []string
	Total     int64
	// Replayed reports that the request id was already recorded and the
	// result was reconstructed rather than executed.
	Replayed bool
}

// ConfirmPurchase converts the holder's active holds into a sale under
// the requestID idempotency token. A replay of a recorded token
// reconstructs the original outcome from the purchase rows and
// mutates nothing; the same token from a different holder is rejected
// outright. Seats that are missing, already sold, not held by this
// holder, or whose hold has expired are skipped. The token is consumed
// only when at least one seat confirms, so an all-skipped call can be
// retried later.
func (c *Coordinator) ConfirmPurchase(ctx context.Context, requestID, holderID string, seatIDs []string) (*ConfirmResult, error) {
	if len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "seat_ids must not be empty")
	}

	result := &ConfirmResult{Confirmed: []string{}, Skipped: []string{}}
	now := time.Now().UTC()

	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetPurchase(ctx, requestID)
		if err == nil {
			if existing.HolderID != holderID {
				return errors.Wrapf(domain.ErrIdempotencyMismatch, "request %s", requestID)
			}
			result.Replayed = true
			confirmed := make(map[string]bool, len(existing.Items))
			for _, item := range existing.Items {
				result.Confirmed = append(result.Confirmed, item.SeatID)
				result.Total += item.Price
				confirmed[item.SeatID] = true
			}
			for _, seatID := range seatIDs {
				if !confirmed[seatID] {
					result.Skipped = append(result.Skipped, seatID)
				}
			}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		var items []domain.PurchaseItem
		for _, seatID := range seatIDs {
			seat, err := tx.GetSeat(ctx, seatID)
			if errors.Is(err, domain.ErrNotFound) {
				result.Skipped = append(result.Skipped, seatID)
				continue
			}
			if err != nil {
				return err
			}
			if seat.Status == domain.SeatSold {
				result.Skipped = append(result.Skipped, seatID)
				continue
			}
			hold, err := tx.GetHold(ctx, seatID)
			if errors.Is(err, domain.ErrNotFound) {
				result.Skipped = append(result.Skipped, seatID)
				continue
			}
			if err != nil {
				return err
			}
			if hold.HolderID != holderID || hold.Expired(now) {
				result.Skipped = append(result.Skipped, seatID)
				continue
			}

			seat.Status = domain.SeatSold
			seat.UpdatedAt = now
			if err := tx.UpdateSeat(ctx, seat); err != nil {
				return err
			}
			if err := tx.DeleteHold(ctx, seatID); err != nil {
				return err
			}
			if err := c.locker.Release(ctx, lock.SeatKey(seatID), holderID); err != nil {
				c.logger.WithError(err).WithField("seat_id", seatID).Warn("lock release failed")
			}
			items = append(items, domain.PurchaseItem{RequestID: requestID, SeatID: seatID, Price: seat.Price})
			result.Confirmed = append(result.Confirmed, seatID)
			result.Total += seat.Price
		}

		if len(result.Confirmed) == 0 {
			return nil
		}
		return tx.CreatePurchase(ctx, domain.NewPurchase(requestID, holderID, now, items))
	})
	if err != nil {
		return nil, err
	}

	// Replays mutate nothing and are not counted again.
	if !result.Replayed {
		countSeatOps("confirm", "confirmed", len(result.Confirmed))
		countSeatOps("confirm", "skipped", len(result.Skipped))
		c.publish(ctx, result.Confirmed, domain.SeatHold, domain.SeatSold, holderID)
	}
	return result, nil
}

// AdminForceRelease removes any hold on the seat regardless of holder
// and releases the seat lock. It does not change the seat status; the
// admin update path that moves a seat away from HOLD is responsible
// for that.
func (c *Coordinator) AdminForceRelease(ctx context.Context, seatID string) (bool, error) {
	removed := false
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		removed, err = c.forceReleaseSeat(ctx, tx, seatID)
		return err
	})
	if err != nil {
		return false, err
	}
	if removed {
		countSeatOps("release", "forced", 1)
	}
	return removed, nil
}

func (c *Coordinator) forceReleaseSeat(ctx context.Context, tx store.Tx, seatID string) (bool, error) {
	hold, err := tx.GetHold(ctx, seatID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := c.locker.Release(ctx, lock.SeatKey(seatID), hold.HolderID); err != nil {
		c.logger.WithError(err).WithField("seat_id", seatID).Warn("lock release failed")
	}
	if err := tx.DeleteHold(ctx, seatID); err != nil {
		return false, err
	}
	return true, nil
}

func countSeatOps(op, outcome string, n int) {
	if n == 0 {
		return
	}
	observability.SeatOperationsTotal.WithLabelValues(op, outcome).Add(float64(n))
}

func (c *Coordinator) publish(ctx context.Context, seatIDs []string, from, to domain.SeatStatus, by string) {
	if len(seatIDs) == 0 {
		return
	}
	at := time.Now().UTC()
	changes := make([]domain.SeatStateChanged, len(seatIDs))
	for i, seatID := range seatIDs {
		changes[i] = domain.SeatStateChanged{SeatID: seatID, From: from, To: to, By: by, At: at}
	}
	if err := c.pub.Publish(ctx, changes...); err != nil {
		c.logger.WithError(err).Warn("event publish failed")
		return
	}
	observability.EventsPublishedTotal.Add(float64(len(changes)))
}
