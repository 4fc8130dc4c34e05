package domain

import "time"

// Movement kind catalog names.
const (
	KindSale       = "SALE"
	KindInbound    = "INBOUND"
	KindReturn     = "RETURN"
	KindAdjustment = "ADJUSTMENT"
)

type MovementKind struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Movement is an append-only ledger entry. Stock changes are applied
// separately, in the same transaction that records the movement.
type Movement struct {
	ID        string    `json:"id"`
	KindID    string    `json:"kind_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
