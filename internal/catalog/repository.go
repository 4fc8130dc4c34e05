package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// Repository manages the reference tables the order workflow resolves
// by name at runtime. The seed binary installs the rows the workflow
// depends on; admins can add further entries through the API.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	category := &domain.Category{
		ID:   uuid.New().String(),
		Name: name,
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (id, name) VALUES ($1, $2)",
		category.ID, category.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) CreateStatus(ctx context.Context, name, description string) (*domain.OrderStatus, error) {
	status := &domain.OrderStatus{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO order_statuses (id, name, description) VALUES ($1, $2, NULLIF($3, ''))",
		status.ID, status.Name, status.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order status: %w", err)
	}

	return status, nil
}

func (r *Repository) CreateMovementKind(ctx context.Context, name, description string) (*domain.MovementKind, error) {
	kind := &domain.MovementKind{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO movement_kinds (id, name, description) VALUES ($1, $2, NULLIF($3, ''))",
		kind.ID, kind.Name, kind.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert movement kind: %w", err)
	}

	return kind, nil
}

func (r *Repository) ListStatuses(ctx context.Context) ([]domain.OrderStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(description, '') FROM order_statuses ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order statuses: %w", err)
	}
	defer rows.Close()

	var statuses []domain.OrderStatus
	for rows.Next() {
		var s domain.OrderStatus
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan order status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func (r *Repository) ListMovementKinds(ctx context.Context) ([]domain.MovementKind, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(description, '') FROM movement_kinds ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query movement kinds: %w", err)
	}
	defer rows.Close()

	var kinds []domain.MovementKind
	for rows.Next() {
		var k domain.MovementKind
		if err := rows.Scan(&k.ID, &k.Name, &k.Description); err != nil {
			return nil, fmt.Errorf("failed to scan movement kind: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}
