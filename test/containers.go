package test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

type PostgresSetup struct {
	ConnStr string
	cleanup func()
}

func (p *PostgresSetup) Cleanup() {
	p.cleanup()
}

// SetupPostgres starts a disposable Postgres, applies the migrations and
// seeds the status and movement kind catalogs.
func SetupPostgres(ctx context.Context, t *testing.T) *PostgresSetup {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("marketplace"),
		postgres.WithUsername("marketplace"),
		postgres.WithPassword("marketplace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}

	return &PostgresSetup{ConnStr: connStr, cleanup: cleanup}
}

func runMigrations(connStr string) error {
	m, err := migrate.New(migrationsPath(), connStr)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func migrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	testDir := filepath.Dir(filename)
	projectRoot := filepath.Dir(testDir)
	return "file://" + filepath.Join(projectRoot, "migrations")
}

func SetupKafka(ctx context.Context, t *testing.T) ([]string, func()) {
	t.Helper()

	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers, cleanup
}

func OpenDB(t *testing.T, connStr string) *sql.DB {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SeedCatalogs loads the four order statuses and four movement kinds and
// returns their ids keyed by name.
func SeedCatalogs(ctx context.Context, t *testing.T, db *sql.DB) map[string]string {
	t.Helper()

	ids := map[string]string{}
	for _, name := range []string{domain.StatusPending, domain.StatusConfirmed, domain.StatusDelivered, domain.StatusCancelled} {
		id := uuid.New().String()
		if _, err := db.ExecContext(ctx,
			"INSERT INTO order_statuses (id, name) VALUES ($1, $2)", id, name); err != nil {
			t.Fatalf("failed to seed status %s: %v", name, err)
		}
		ids[name] = id
	}
	for _, name := range []string{domain.KindSale, domain.KindInbound, domain.KindReturn, domain.KindAdjustment} {
		id := uuid.New().String()
		if _, err := db.ExecContext(ctx,
			"INSERT INTO movement_kinds (id, name) VALUES ($1, $2)", id, name); err != nil {
			t.Fatalf("failed to seed kind %s: %v", name, err)
		}
		ids[name] = id
	}
	return ids
}

// CreateUser inserts a user with a throwaway password hash and returns
// its id.
func CreateUser(ctx context.Context, t *testing.T, db *sql.DB, name, role string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, $2, $3, 'x', $4)",
		id, name, name+"@test.local", role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return id
}

// CreateProvider inserts a provider profile for the user and returns
// its id.
func CreateProvider(ctx context.Context, t *testing.T, db *sql.DB, userID string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.ExecContext(ctx,
		"INSERT INTO providers (id, user_id, trade_name, tax_id) VALUES ($1, $2, 'Test Provider', '12345')",
		id, userID)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return id
}

// CreateProduct inserts an active product and returns its id.
func CreateProduct(ctx context.Context, t *testing.T, db *sql.DB, providerID, name string, price decimal.Decimal, stock int) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.ExecContext(ctx,
		"INSERT INTO products (id, provider_id, name, price, stock) VALUES ($1, $2, $3, $4, $5)",
		id, providerID, name, price, stock)
	if err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return id
}

// StockOf reads the current stock level directly.
func StockOf(ctx context.Context, t *testing.T, db *sql.DB, productID string) int {
	t.Helper()

	var stock int
	if err := db.QueryRowContext(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// MovementCount counts ledger rows for a product and kind.
func MovementCount(ctx context.Context, t *testing.T, db *sql.DB, productID, kindID string) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movements WHERE product_id = $1 AND kind_id = $2",
		productID, kindID).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count movements: %v", err)
	}
	return n
}
