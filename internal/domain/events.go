package domain

import "time"

type OrderItemEvent struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderCreatedEvent struct {
	OrderID   string           `json:"order_id"`
	UserID    string           `json:"user_id"`
	Items     []OrderItemEvent `json:"items"`
	Timestamp time.Time        `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID   string           `json:"order_id"`
	Status    string           `json:"status"`
	Items     []OrderItemEvent `json:"items"`
	Timestamp time.Time        `json:"timestamp"`
}
