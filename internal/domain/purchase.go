package domain

import "time"

// Purchase records one consumed idempotency token. Replaying the same
// request_id must reproduce the original outcome from these rows.
type Purchase struct {
	RequestID string
	HolderID  string
	CreatedAt time.Time
	Items     []PurchaseItem
}

// PurchaseItem snapshots a seat's price at confirm time. IDs are
// store-assigned and increase in insertion order, which fixes the
// order of a replayed confirmed list.
type PurchaseItem struct {
	ID        int64
	RequestID string
	SeatID    string
	Price     int64
}

func NewPurchase(requestID, holderID string, now time.Time, items []PurchaseItem) Purchase {
	return Purchase{
		RequestID: requestID,
		HolderID:  holderID,
		CreatedAt: now,
		Items:     items,
	}
}
