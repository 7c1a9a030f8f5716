// Package sweeper retires holds whose expiry has passed. It is the
// only writer of by="system" seat transitions; everything else goes
// through the coordinator.
package sweeper

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

const minInterval = time.Second

type Sweeper struct {
	store    store.Store
	locker   lock.Locker
	pub      events.Publisher
	logger   observability.Logger
	interval time.Duration
}

func New(st store.Store, locker lock.Locker, pub events.Publisher, interval time.Duration, logger observability.Logger) *Sweeper {
	if interval < minInterval {
		interval = minInterval
	}
	return &Sweeper{store: st, locker: locker, pub: pub, logger: logger, interval: interval}
}

// Run sweeps on the configured interval until the context is
// cancelled. A failed tick is counted and logged; the next tick runs
// regardless.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				observability.SweepFailuresTotal.Inc()
				s.logger.WithError(err).Error("sweep failed")
			}
		}
	}
}

// SweepOnce deletes every expired hold in one transaction and returns
// the seats it flipped back to AVAILABLE. A seat that moved off HOLD
// while its hold aged out keeps its status; the stale hold row and
// lock are still removed.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	now := time.Now().UTC()
	released := []string{}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		holds, err := tx.ListExpiredHolds(ctx, now)
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
			if err := s.locker.Release(ctx, lock.SeatKey(hold.SeatID), hold.HolderID); err != nil {
				s.logger.WithError(err).WithField("seat_id", hold.SeatID).Warn("lock release failed")
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

	if len(released) > 0 {
		at := time.Now().UTC()
		changes := make([]domain.SeatStateChanged, len(released))
		for i, seatID := range released {
			changes[i] = domain.SeatStateChanged{
				SeatID: seatID,
				From:   domain.SeatHold,
				To:     domain.SeatAvailable,
				By:     domain.SystemActor,
				At:     at,
			}
		}
		if err := s.pub.Publish(ctx, changes...); err != nil {
			s.logger.WithError(err).Warn("event publish failed")
		} else {
			observability.EventsPublishedTotal.Add(float64(len(changes)))
		}
		observability.HoldsExpiredTotal.Add(float64(len(released)))
		s.logger.WithField("count", len(released)).Info("expired holds released")
	}
	return released, nil
}
