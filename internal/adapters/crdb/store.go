package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

// Store implements store.Store on CockroachDB. Every transaction runs
// SERIALIZABLE; serialization failures surface as
// domain.ErrSerializationFailure so callers can retry.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(&sqlTx{tx: tx})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case SerializationFailureCode:
				return domain.ErrSerializationFailure
			case UniqueViolationCode:
				return domain.ErrConflict
			}
		}
		return err
	}

	return tx.Commit(ctx)
}

type sqlTx struct {
	tx pgx.Tx
}

const seatColumns = `seat_id, floor, grid_row, grid_col, layout_row, layout_col, zone, COALESCE(tier, ''), price, status, created_at, updated_at`

func scanSeat(row pgx.Row) (*domain.Seat, error) {
	var s domain.Seat
	var status string
	err := row.Scan(&s.SeatID, &s.Floor, &s.GridRow, &s.GridCol, &s.LayoutRow, &s.LayoutCol,
		&s.Zone, &s.Tier, &s.Price, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SeatStatus(status)
	return &s, nil
}

func collectSeats(rows pgx.Rows) ([]domain.Seat, error) {
	defer rows.Close()
	var seats []domain.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *seat)
	}
	return seats, rows.Err()
}

func (t *sqlTx) GetSeat(ctx context.Context, seatID string) (*domain.Seat, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE seat_id = $1`, seatID)
	seat, err := scanSeat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return seat, err
}

func (t *sqlTx) ListSeats(ctx context.Context, seatIDs []string) ([]domain.Seat, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE seat_id = ANY($1) ORDER BY seat_id`, seatIDs)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

func (t *sqlTx) ListSeatsByFloor(ctx context.Context, floor int) ([]domain.Seat, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE floor = $1 ORDER BY grid_row, grid_col`, floor)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

func (t *sqlTx) ListAllSeats(ctx context.Context) ([]domain.Seat, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY seat_id`)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

func (t *sqlTx) UpdateSeat(ctx context.Context, seat *domain.Seat) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE seats SET status = $2, tier = NULLIF($3, ''), price = $4, updated_at = $5
		WHERE seat_id = $1
	`, seat.SeatID, string(seat.Status), seat.Tier, seat.Price, seat.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sqlTx) CreateSeat(ctx context.Context, seat domain.Seat) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO seats (seat_id, floor, grid_row, grid_col, layout_row, layout_col, zone, tier, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`, seat.SeatID, seat.Floor, seat.GridRow, seat.GridCol, seat.LayoutRow, seat.LayoutCol,
		seat.Zone, seat.Tier, seat.Price, string(seat.Status))
	return err
}

func scanHold(row pgx.Row) (*domain.Hold, error) {
	var h domain.Hold
	err := row.Scan(&h.SeatID, &h.HolderID, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func collectHolds(rows pgx.Rows) ([]domain.Hold, error) {
	defer rows.Close()
	var holds []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *hold)
	}
	return holds, rows.Err()
}

func (t *sqlTx) GetHold(ctx context.Context, seatID string) (*domain.Hold, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT seat_id, holder_id, expires_at, created_at FROM holds WHERE seat_id = $1
	`, seatID)
	hold, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return hold, err
}

func (t *sqlTx) ListHoldsByHolder(ctx context.Context, holderID string, seatIDs []string) ([]domain.Hold, error) {
	if seatIDs != nil {
		rows, err := t.tx.Query(ctx, `
			SELECT seat_id, holder_id, expires_at, created_at FROM holds
			WHERE holder_id = $1 AND seat_id = ANY($2) ORDER BY seat_id
		`, holderID, seatIDs)
		if err != nil {
			return nil, err
		}
		return collectHolds(rows)
	}
	rows, err := t.tx.Query(ctx, `
		SELECT seat_id, holder_id, expires_at, created_at FROM holds
		WHERE holder_id = $1 ORDER BY seat_id
	`, holderID)
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (t *sqlTx) ListHoldsBySeats(ctx context.Context, seatIDs []string) ([]domain.Hold, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seat_id, holder_id, expires_at, created_at FROM holds
		WHERE seat_id = ANY($1) ORDER BY seat_id
	`, seatIDs)
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (t *sqlTx) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seat_id, holder_id, expires_at, created_at FROM holds
		WHERE expires_at <= $1 ORDER BY seat_id
	`, now)
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (t *sqlTx) CreateHold(ctx context.Context, hold domain.Hold) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO holds (seat_id, holder_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, hold.SeatID, hold.HolderID, hold.ExpiresAt, hold.CreatedAt)
	return err
}

func (t *sqlTx) UpdateHoldExpiry(ctx context.Context, seatID string, expiresAt time.Time) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE holds SET expires_at = $2 WHERE seat_id = $1
	`, seatID, expiresAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sqlTx) DeleteHold(ctx context.Context, seatID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM holds WHERE seat_id = $1`, seatID)
	return err
}

func (t *sqlTx) GetPurchase(ctx context.Context, requestID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := t.tx.QueryRow(ctx, `
		SELECT request_id, holder_id, created_at FROM purchases WHERE request_id = $1
	`, requestID).Scan(&p.RequestID, &p.HolderID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, request_id, seat_id, price FROM purchase_items
		WHERE request_id = $1 ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.SeatID, &item.Price); err != nil {
			return nil, err
		}
		p.Items = append(p.Items, item)
	}
	return &p, rows.Err()
}

func (t *sqlTx) CreatePurchase(ctx context.Context, purchase domain.Purchase) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO purchases (request_id, holder_id, created_at)
		VALUES ($1, $2, $3)
	`, purchase.RequestID, purchase.HolderID, purchase.CreatedAt)
	if err != nil {
		return err
	}
	for _, item := range purchase.Items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO purchase_items (request_id, seat_id, price)
			VALUES ($1, $2, $3)
		`, item.RequestID, item.SeatID, item.Price)
		if err != nil {
			return err
		}
	}
	return nil
}
