package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so stock operations can
// run standalone or bound to a caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store guards product stock. Reserve and Release are single conditional
// updates at the row level; concurrent reservations against the same
// product serialize on the row lock and the loser sees insufficient stock.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Reserve decrements stock and returns the remaining quantity. It fails
// with domain.ErrInsufficientStock when stock < quantity, and with
// domain.ErrProductNotFound when the product does not exist.
func (s *Store) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`, productID, quantity).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}

	return 0, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
}

// Release increments stock and returns the new quantity. It fails with
// domain.ErrProductNotFound when the product does not exist.
func (s *Store) Release(ctx context.Context, productID string, quantity int) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, productID, quantity).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return 0, err
	}

	return remaining, nil
}

// StockLevel reads the current stock and low-stock threshold.
func (s *Store) StockLevel(ctx context.Context, productID string) (stock, threshold int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT stock, low_stock_threshold
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return stock, threshold, err
}
