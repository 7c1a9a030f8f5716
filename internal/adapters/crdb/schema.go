package crdb

import "context"

// Schema holds one hold row per seat via the primary key, which is the
// at-most-one-hold invariant enforced at the storage layer. Expired
// rows are found by the sweeper through holds_expires_idx.
const Schema = `
CREATE TABLE IF NOT EXISTS seats (
	seat_id TEXT PRIMARY KEY,
	floor INT8 NOT NULL,
	grid_row INT8 NOT NULL,
	grid_col INT8 NOT NULL,
	layout_row INT8,
	layout_col INT8,
	zone TEXT NOT NULL,
	tier TEXT,
	price INT8 NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'AVAILABLE' CHECK (status IN ('AVAILABLE', 'HOLD', 'SOLD', 'BLOCKED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	INDEX seats_floor_idx (floor)
);

CREATE TABLE IF NOT EXISTS holds (
	seat_id TEXT PRIMARY KEY REFERENCES seats (seat_id) ON DELETE CASCADE,
	holder_id TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	INDEX holds_holder_idx (holder_id),
	INDEX holds_expires_idx (expires_at)
);

CREATE TABLE IF NOT EXISTS purchases (
	request_id TEXT PRIMARY KEY,
	holder_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchase_items (
	id INT8 NOT NULL DEFAULT unique_rowid() PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES purchases (request_id) ON DELETE CASCADE,
	seat_id TEXT NOT NULL REFERENCES seats (seat_id) ON DELETE CASCADE,
	price INT8 NOT NULL,
	INDEX purchase_items_request_idx (request_id)
);
`

const dropSchema = `
DROP TABLE IF EXISTS purchase_items;
DROP TABLE IF EXISTS purchases;
DROP TABLE IF EXISTS holds;
DROP TABLE IF EXISTS seats;
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// ResetSchema drops and recreates all tables. The seat loader uses it
// to start a sale from a clean chart.
func (s *Store) ResetSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, dropSchema); err != nil {
		return err
	}
	return s.EnsureSchema(ctx)
}
