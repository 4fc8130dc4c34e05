package providers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, provider *domain.Provider) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO providers (id, user_id, trade_name, tax_id, address, phone, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, provider.ID, provider.UserID, provider.TradeName, provider.TaxID,
		provider.Address, provider.Phone, provider.Latitude, provider.Longitude, provider.CreatedAt)
	return err
}

// ByUserID returns nil when the user has no provider profile.
func (r *Repository) ByUserID(ctx context.Context, userID string) (*domain.Provider, error) {
	provider := &domain.Provider{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, trade_name, tax_id,
		       COALESCE(address, ''), COALESCE(phone, ''),
		       COALESCE(latitude, 0), COALESCE(longitude, 0), created_at
		FROM providers
		WHERE user_id = $1
	`, userID).Scan(
		&provider.ID, &provider.UserID, &provider.TradeName, &provider.TaxID,
		&provider.Address, &provider.Phone, &provider.Latitude, &provider.Longitude,
		&provider.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Provider, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, trade_name, tax_id,
		       COALESCE(address, ''), COALESCE(phone, ''),
		       COALESCE(latitude, 0), COALESCE(longitude, 0), created_at
		FROM providers
		ORDER BY trade_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	providers := []domain.Provider{}
	for rows.Next() {
		var p domain.Provider
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.TradeName, &p.TaxID,
			&p.Address, &p.Phone, &p.Latitude, &p.Longitude, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return providers, nil
}
