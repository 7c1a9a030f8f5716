package domain

import "time"

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHold      SeatStatus = "HOLD"
	SeatSold      SeatStatus = "SOLD"
	SeatBlocked   SeatStatus = "BLOCKED"
)

func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatHold, SeatSold, SeatBlocked:
		return true
	}
	return false
}

// Seat is the unit of inventory. Placement fields are set once by the
// catalog loader; Status and UpdatedAt are owned by the coordinator and
// the sweeper. Tier may be empty for unclassified seats.
type Seat struct {
	SeatID    string
	Floor     int
	GridRow   int
	GridCol   int
	LayoutRow *int
	LayoutCol *int
	Zone      string
	Tier      string
	Price     int64
	Status    SeatStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
