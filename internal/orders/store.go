package orders

import (
	"context"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// Tx is the unit of work handed to the workflow. Every method runs
// against the same transaction; a returned error from the Transact
// callback rolls the whole thing back.
type Tx interface {
	// Catalog lookups. A missing row is returned as (nil, nil); errors
	// are storage failures only.
	StatusByName(ctx context.Context, name string) (*domain.OrderStatus, error)
	StatusByID(ctx context.Context, id string) (*domain.OrderStatus, error)
	KindByName(ctx context.Context, name string) (*domain.MovementKind, error)

	// Products, keyed by id. Missing ids are simply absent from the map.
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	// Order aggregate access. OrderForUpdate locks the order row for the
	// remainder of the transaction and returns nil when it does not exist.
	InsertOrder(ctx context.Context, order *domain.Order) error
	OrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, statusID string) error

	// ProviderIDByUserID returns "" when the user has no provider profile.
	ProviderIDByUserID(ctx context.Context, userID string) (string, error)

	// Inventory store and movement ledger, bound to this transaction.
	Reserve(ctx context.Context, productID string, quantity int) (int, error)
	Release(ctx context.Context, productID string, quantity int) (int, error)
	AppendMovement(ctx context.Context, kindID, productID string, quantity int) error
}

// Store opens units of work and serves the read-only order queries.
type Store interface {
	Transact(ctx context.Context, fn func(Tx) error) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}
