package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// Ledger is the append-only movement log. It never updates or deletes;
// stock itself is mutated by Store in the same transaction.
type Ledger struct {
	db DBTX
}

func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Append(ctx context.Context, kindID, productID string, quantity int) (*domain.Movement, error) {
	m := &domain.Movement{
		ID:        uuid.New().String(),
		KindID:    kindID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO movements (id, kind_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.KindID, m.ProductID, m.Quantity, m.CreatedAt)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// List returns movements, newest first, optionally filtered by product.
func (l *Ledger) List(ctx context.Context, productID string) ([]domain.Movement, error) {
	query := `
		SELECT id, kind_id, product_id, quantity, created_at
		FROM movements
		ORDER BY created_at DESC
	`
	args := []any{}
	if productID != "" {
		query = `
			SELECT id, kind_id, product_id, quantity, created_at
			FROM movements
			WHERE product_id = $1
			ORDER BY created_at DESC
		`
		args = append(args, productID)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	movements := []domain.Movement{}
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.KindID, &m.ProductID, &m.Quantity, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return movements, nil
}
