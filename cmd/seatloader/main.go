package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/crdb"
	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/store"
)

// seatRecord is one entry of the seat catalog file. Only seat_id and
// placement are required; tier, price and status have loader defaults.
type seatRecord struct {
	SeatID    string `json:"seat_id"`
	Floor     int    `json:"floor"`
	GridRow   int    `json:"grid_row"`
	GridCol   int    `json:"grid_col"`
	LayoutRow *int   `json:"layout_row"`
	LayoutCol *int   `json:"layout_col"`
	Zone      string `json:"zone"`
	Tier      string `json:"tier"`
	Price     *int64 `json:"price"`
	Status    string `json:"status"`
}

// Loads the seat catalog from SEATS_JSON_PATH into a fresh schema.
// Destructive: drops and recreates all tables first.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	data, err := os.ReadFile(cfg.SeatsJSONPath)
	if err != nil {
		log.Fatalf("failed to read seat catalog: %v", err)
	}
	var records []seatRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Fatalf("failed to parse seat catalog: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()

	st := crdb.NewStore(pool)
	if err := st.ResetSchema(ctx); err != nil {
		log.Fatalf("failed to reset schema: %v", err)
	}

	now := time.Now().UTC()
	err = st.WithTx(ctx, func(tx store.Tx) error {
		for _, rec := range records {
			seat := toSeat(rec, cfg.TierPrices, now)
			if !seat.Status.Valid() {
				return errors.Newf("seat %s: unknown status %q", rec.SeatID, rec.Status)
			}
			if err := tx.CreateSeat(ctx, seat); err != nil {
				return errors.Wrapf(err, "seat %s", rec.SeatID)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to load seats: %v", err)
	}

	logger.WithField("count", len(records)).Info("seat catalog loaded")
}

func toSeat(rec seatRecord, prices config.TierPrices, now time.Time) domain.Seat {
	seat := domain.Seat{
		SeatID:    rec.SeatID,
		Floor:     rec.Floor,
		GridRow:   rec.GridRow,
		GridCol:   rec.GridCol,
		LayoutRow: rec.LayoutRow,
		LayoutCol: rec.LayoutCol,
		Zone:      rec.Zone,
		Tier:      rec.Tier,
		Status:    domain.SeatAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Seats the chart could not classify are not sellable.
	if rec.Tier == "" {
		seat.Status = domain.SeatBlocked
	}
	if rec.Status != "" {
		seat.Status = domain.SeatStatus(rec.Status)
	}
	if rec.Price != nil {
		seat.Price = *rec.Price
	} else {
		seat.Price = prices.PriceFor(rec.Tier)
	}
	return seat
}
