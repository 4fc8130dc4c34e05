package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/inventory"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Filter narrows public product listings.
type Filter struct {
	ProviderID string
	CategoryID string
	Search     string
}

const productColumns = `
	id, provider_id, COALESCE(category_id::text, ''), name,
	COALESCE(description, ''), COALESCE(image_url, ''),
	price, stock, low_stock_threshold, active, created_at, updated_at
`

// Create inserts the product and, when it arrives with initial stock,
// records the matching INBOUND movement in the same transaction.
func (r *Repository) Create(ctx context.Context, product *domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var categoryID any
	if product.CategoryID != "" {
		categoryID = product.CategoryID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, provider_id, category_id, name, description, image_url,
		                      price, stock, low_stock_threshold, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, product.ID, product.ProviderID, categoryID, product.Name, product.Description,
		product.ImageURL, product.Price, product.Stock, product.LowStockThreshold,
		product.Active, product.CreatedAt)
	if err != nil {
		return err
	}

	if product.Stock > 0 {
		var kindID string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM movement_kinds WHERE name = $1
		`, domain.KindInbound).Scan(&kindID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("movement kind %s: %w", domain.KindInbound, domain.ErrConfigurationMissing)
		}
		if err != nil {
			return err
		}

		if _, err := inventory.NewLedger(tx).Append(ctx, kindID, product.ID, product.Stock); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ByID returns nil when the product does not exist.
func (r *Repository) ByID(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}
	err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id), product)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// List returns active products matching the filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE active
	`
	args := []any{}

	if filter.ProviderID != "" {
		args = append(args, filter.ProviderID)
		query += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	query += " ORDER BY created_at DESC"

	return r.list(ctx, query, args...)
}

// ListByProvider returns every product of a provider, active or not.
func (r *Repository) ListByProvider(ctx context.Context, providerID string) ([]domain.Product, error) {
	return r.list(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE provider_id = $1
		ORDER BY created_at DESC
	`, providerID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProductRows(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Update rewrites the mutable fields. Stock is deliberately absent:
// stock only moves through inventory movements.
func (r *Repository) Update(ctx context.Context, product *domain.Product) error {
	var categoryID any
	if product.CategoryID != "" {
		categoryID = product.CategoryID
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, image_url = $4, price = $5,
		    low_stock_threshold = $6, category_id = $7, active = $8, updated_at = NOW()
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.ImageURL,
		product.Price, product.LowStockThreshold, categoryID, product.Active)
	return err
}

// Deactivate soft-deletes the product.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
	}

	return nil
}

func scanProduct(row *sql.Row, p *domain.Product) error {
	return row.Scan(
		&p.ID, &p.ProviderID, &p.CategoryID, &p.Name,
		&p.Description, &p.ImageURL,
		&p.Price, &p.Stock, &p.LowStockThreshold, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func scanProductRows(rows *sql.Rows, p *domain.Product) error {
	return rows.Scan(
		&p.ID, &p.ProviderID, &p.CategoryID, &p.Name,
		&p.Description, &p.ImageURL,
		&p.Price, &p.Stock, &p.LowStockThreshold, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
