package domain

import "errors"

// Failure kinds surfaced by the order and inventory workflows. Callers
// match with errors.Is; the wrapped message names the offending entity.
var (
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrConfigurationMissing = errors.New("catalog configuration missing")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrTerminalState        = errors.New("order is in a terminal state")
	ErrForbidden            = errors.New("forbidden")
	ErrOrderNotFound        = errors.New("order not found")
	ErrEmptyOrder           = errors.New("order has no items")
)
