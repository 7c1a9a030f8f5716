// Package store defines the transactional inventory port the
// coordinator and sweeper are written against. The crdb adapter is the
// production implementation; memstore backs the unit tests.
package store

import (
	"context"
	"time"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
)

// Tx is one open transaction. Lookups return domain.ErrNotFound for
// missing rows; every mutation made through a Tx commits or rolls back
// together.
type Tx interface {
	GetSeat(ctx context.Context, seatID string) (*domain.Seat, error)
	ListSeats(ctx context.Context, seatIDs []string) ([]domain.Seat, error)
	ListSeatsByFloor(ctx context.Context, floor int) ([]domain.Seat, error)
	ListAllSeats(ctx context.Context) ([]domain.Seat, error)
	UpdateSeat(ctx context.Context, seat *domain.Seat) error
	CreateSeat(ctx context.Context, seat domain.Seat) error

	GetHold(ctx context.Context, seatID string) (*domain.Hold, error)
	ListHoldsByHolder(ctx context.Context, holderID string, seatIDs []string) ([]domain.Hold, error)
	ListHoldsBySeats(ctx context.Context, seatIDs []string) ([]domain.Hold, error)
	ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Hold, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
	UpdateHoldExpiry(ctx context.Context, seatID string, expiresAt time.Time) error
	DeleteHold(ctx context.Context, seatID string) error

	GetPurchase(ctx context.Context, requestID string) (*domain.Purchase, error)
	CreatePurchase(ctx context.Context, purchase domain.Purchase) error
}

// Store opens transactions. fn returning an error rolls the
// transaction back and the error is passed through to the caller.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
