package domain

import "time"

// Actors recorded in the "by" field of seat state events when the
// transition was not made by a holder.
const (
	SystemActor = "system"
	AdminActor  = "admin"
)

// SeatStateChanged is the single event type this service emits. It is
// marshaled as-is onto the broker and to websocket subscribers.
type SeatStateChanged struct {
	SeatID string     `json:"seat_id"`
	From   SeatStatus `json:"from"`
	To     SeatStatus `json:"to"`
	By     string     `json:"by,omitempty"`
	At     time.Time  `json:"at"`
}
