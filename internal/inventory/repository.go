package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// Repository owns the transaction for manual inventory movements and the
// read paths that do not belong to the order workflow.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RegisterMovement applies a manual stock change and appends the matching
// ledger record in one transaction. Outbound movements fail with
// domain.ErrInsufficientStock rather than driving stock negative.
func (r *Repository) RegisterMovement(ctx context.Context, productID, kindName string, quantity int, outbound bool) (*domain.Movement, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var kindID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM movement_kinds WHERE name = $1
	`, kindName).Scan(&kindID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("movement kind %s: %w", kindName, domain.ErrConfigurationMissing)
	}
	if err != nil {
		return nil, 0, err
	}

	store := NewStore(tx)

	var remaining int
	if outbound {
		remaining, err = store.Reserve(ctx, productID, quantity)
	} else {
		remaining, err = store.Release(ctx, productID, quantity)
	}
	if err != nil {
		return nil, 0, err
	}

	movement, err := NewLedger(tx).Append(ctx, kindID, productID, quantity)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}

	return movement, remaining, nil
}

func (r *Repository) ListMovements(ctx context.Context, productID string) ([]domain.Movement, error) {
	return NewLedger(r.db).List(ctx, productID)
}

// LowStock returns active products at or below their low-stock threshold.
// With ids, the check is restricted to those products.
func (r *Repository) LowStock(ctx context.Context, ids []string) ([]domain.Product, error) {
	query := `
		SELECT id, provider_id, name, price, stock, low_stock_threshold
		FROM products
		WHERE active AND stock <= low_stock_threshold
		ORDER BY stock ASC
	`
	args := []any{}
	if len(ids) > 0 {
		query = `
			SELECT id, provider_id, name, price, stock, low_stock_threshold
			FROM products
			WHERE active AND stock <= low_stock_threshold AND id = ANY($1)
			ORDER BY stock ASC
		`
		args = append(args, pq.Array(ids))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.Name, &p.Price, &p.Stock, &p.LowStockThreshold); err != nil {
			return nil, err
		}
		p.Active = true
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
