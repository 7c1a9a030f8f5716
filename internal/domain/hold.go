package domain

import "time"

// Hold is a time-bounded exclusive claim on a single seat. At most one
// committed Hold exists per seat; the store enforces this with the
// seat_id primary key.
type Hold struct {
	SeatID    string
	HolderID  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewHold(seatID, holderID string, now time.Time, ttl time.Duration) Hold {
	return Hold{
		SeatID:    seatID,
		HolderID:  holderID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Expired reports whether the hold is logically dead at now, whether or
// not the sweeper has gotten to it yet.
func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
