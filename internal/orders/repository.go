package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/inventory"
)

// Repository is the Postgres implementation of Store. Reserve runs as a
// conditional row-level update, so concurrent orders against the same
// product serialize on the row lock and the loser observes insufficient
// stock instead of a lost update.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Transact(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&repoTx{
		tx:     tx,
		store:  inventory.NewStore(tx),
		ledger: inventory.NewLedger(tx),
	}); err != nil {
		return err
	}

	return tx.Commit()
}

type repoTx struct {
	tx     *sql.Tx
	store  *inventory.Store
	ledger *inventory.Ledger
}

func (t *repoTx) StatusByName(ctx context.Context, name string) (*domain.OrderStatus, error) {
	return t.scanStatus(t.tx.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM order_statuses
		WHERE name = $1
	`, name))
}

func (t *repoTx) StatusByID(ctx context.Context, id string) (*domain.OrderStatus, error) {
	return t.scanStatus(t.tx.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM order_statuses
		WHERE id = $1
	`, id))
}

func (t *repoTx) scanStatus(row *sql.Row) (*domain.OrderStatus, error) {
	status := &domain.OrderStatus{}
	err := row.Scan(&status.ID, &status.Name, &status.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (t *repoTx) KindByName(ctx context.Context, name string) (*domain.MovementKind, error) {
	kind := &domain.MovementKind{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM movement_kinds
		WHERE name = $1
	`, name).Scan(&kind.ID, &kind.Name, &kind.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return kind, nil
}

func (t *repoTx) ProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, provider_id, name, price, stock
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (t *repoTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status_id, total, commission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.Status.ID, order.Total, order.Commission, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, line := range order.Lines {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, line.ID, line.OrderID, line.ProductID, line.Quantity, line.Price, line.Subtotal)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *repoTx) OrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.total, o.commission, o.created_at, o.updated_at,
		       s.id, s.name, COALESCE(s.description, '')
		FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`, id).Scan(
		&order.ID, &order.UserID, &order.Total, &order.Commission,
		&order.CreatedAt, &order.UpdatedAt,
		&order.Status.ID, &order.Status.Name, &order.Status.Description,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.Lines, err = scanLines(ctx, t.tx, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (t *repoTx) UpdateOrderStatus(ctx context.Context, orderID, statusID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status_id = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, statusID)
	return err
}

func (t *repoTx) ProviderIDByUserID(ctx context.Context, userID string) (string, error) {
	var providerID string
	err := t.tx.QueryRowContext(ctx, `
		SELECT id FROM providers WHERE user_id = $1
	`, userID).Scan(&providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return providerID, nil
}

func (t *repoTx) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	return t.store.Reserve(ctx, productID, quantity)
}

func (t *repoTx) Release(ctx context.Context, productID string, quantity int) (int, error) {
	return t.store.Release(ctx, productID, quantity)
}

func (t *repoTx) AppendMovement(ctx context.Context, kindID, productID string, quantity int) error {
	_, err := t.ledger.Append(ctx, kindID, productID, quantity)
	return err
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.total, o.commission, o.created_at, o.updated_at,
		       s.id, s.name, COALESCE(s.description, '')
		FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.UserID, &order.Total, &order.Commission,
		&order.CreatedAt, &order.UpdatedAt,
		&order.Status.ID, &order.Status.Name, &order.Status.Description,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.Lines, err = scanLines(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total, o.commission, o.created_at, o.updated_at,
		       s.id, s.name, COALESCE(s.description, '')
		FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		ORDER BY o.created_at DESC
	`
	args := []any{}
	if userID != "" {
		query = `
			SELECT o.id, o.user_id, o.total, o.commission, o.created_at, o.updated_at,
			       s.id, s.name, COALESCE(s.description, '')
			FROM orders o
			JOIN order_statuses s ON s.id = o.status_id
			WHERE o.user_id = $1
			ORDER BY o.created_at DESC
		`
		args = append(args, userID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Total, &order.Commission,
			&order.CreatedAt, &order.UpdatedAt,
			&order.Status.ID, &order.Status.Name, &order.Status.Description,
		); err != nil {
			return nil, err
		}
		order.Lines = []domain.OrderLine{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = lineRows.Close() }()

	for lineRows.Next() {
		var line domain.OrderLine
		if err := lineRows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price, &line.Subtotal); err != nil {
			return nil, err
		}
		orderMap[line.OrderID].Lines = append(orderMap[line.OrderID].Lines, line)
	}

	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func scanLines(ctx context.Context, db inventory.DBTX, orderID string) ([]domain.OrderLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, subtotal
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price, &line.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
