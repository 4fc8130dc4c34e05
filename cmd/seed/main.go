package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// seed loads the reference rows the order workflow resolves by name.
// It is idempotent; reruns leave existing rows untouched.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seedCatalogs(ctx, db); err != nil {
		logger.Error("failed to seed catalogs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("order statuses and movement kinds seeded")

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail != "" && adminPassword != "" {
		if err := seedAdmin(ctx, db, adminEmail, adminPassword); err != nil {
			logger.Error("failed to seed admin user", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("admin user ensured", slog.String("email", adminEmail))
	}
}

func seedCatalogs(ctx context.Context, db *sql.DB) error {
	statuses := []struct {
		name, description string
	}{
		{domain.StatusPending, "Order placed, stock reserved, awaiting confirmation"},
		{domain.StatusConfirmed, "Order confirmed by the provider"},
		{domain.StatusDelivered, "Order delivered to the customer"},
		{domain.StatusCancelled, "Order cancelled, stock reposted"},
	}
	for _, s := range statuses {
		_, err := db.ExecContext(ctx,
			"INSERT INTO order_statuses (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
			uuid.New().String(), s.name, s.description,
		)
		if err != nil {
			return err
		}
	}

	kinds := []struct {
		name, description string
	}{
		{domain.KindSale, "Outbound movement from an order"},
		{domain.KindInbound, "Manual restock"},
		{domain.KindReturn, "Stock reposted by a cancelled order"},
		{domain.KindAdjustment, "Manual correction after a recount"},
	}
	for _, k := range kinds {
		_, err := db.ExecContext(ctx,
			"INSERT INTO movement_kinds (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
			uuid.New().String(), k.name, k.description,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// seedAdmin provisions the initial ADMIN account. The register endpoint
// never issues the ADMIN role, so this is the only way one is created.
func seedAdmin(ctx context.Context, db *sql.DB, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role)
		 VALUES ($1, 'Administrator', $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), email, string(hash), domain.RoleAdmin,
	)
	return err
}
