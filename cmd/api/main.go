package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace-api/internal/auth"
	"github.com/joao-fontenele/marketplace-api/internal/catalog"
	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/inventory"
	"github.com/joao-fontenele/marketplace-api/internal/messaging"
	"github.com/joao-fontenele/marketplace-api/internal/orders"
	"github.com/joao-fontenele/marketplace-api/internal/products"
	"github.com/joao-fontenele/marketplace-api/internal/providers"
	"github.com/joao-fontenele/marketplace-api/internal/telemetry"
)

const (
	serviceName    = "marketplace-api"
	serviceVersion = "1.0.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down telemetry", "error", err)
		}
	}()

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewOrderMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		producer := messaging.NewProducer(strings.Split(kafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	providerRepo := providers.NewRepository(db)

	authHandler := auth.NewHandler(auth.NewRepository(db), []byte(jwtSecret), logger)
	providerHandler := providers.NewHandler(providerRepo, logger)
	productHandler := products.NewHandler(products.NewRepository(db), providerRepo, logger)
	catalogHandler := catalog.NewHandler(catalog.NewRepository(db), logger)
	inventoryHandler := inventory.NewHandler(inventory.NewRepository(db), metrics, logger)

	orderService := orders.NewService(orders.NewRepository(db), logger)
	orderHandler := orders.NewHandler(orderService, publisher, metrics, logger)

	mw := auth.NewMiddleware([]byte(jwtSecret), logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("POST /auth/register", authHandler.HandleRegister)
	route("POST /auth/login", authHandler.HandleLogin)

	route("GET /products", productHandler.HandleList)
	route("GET /products/mine", mw.RequireRole(productHandler.HandleListMine, domain.RoleProvider))
	route("GET /products/{id}", productHandler.HandleGet)
	route("POST /products", mw.RequireRole(productHandler.HandleCreate, domain.RoleProvider))
	route("PATCH /products/{id}", mw.RequireRole(productHandler.HandleUpdate, domain.RoleProvider))
	route("DELETE /products/{id}", mw.RequireRole(productHandler.HandleDeactivate, domain.RoleProvider))

	route("GET /categories", catalogHandler.HandleListCategories)
	route("POST /categories", mw.RequireRole(catalogHandler.HandleCreateCategory, domain.RoleAdmin))
	route("GET /order-statuses", catalogHandler.HandleListStatuses)
	route("POST /order-statuses", mw.RequireRole(catalogHandler.HandleCreateStatus, domain.RoleAdmin))
	route("GET /movement-kinds", catalogHandler.HandleListMovementKinds)
	route("POST /movement-kinds", mw.RequireRole(catalogHandler.HandleCreateMovementKind, domain.RoleAdmin))

	route("POST /providers", mw.RequireRole(providerHandler.HandleRegister, domain.RoleProvider))
	route("GET /providers/me", mw.RequireRole(providerHandler.HandleMe, domain.RoleProvider))
	route("GET /providers", mw.RequireRole(providerHandler.HandleList, domain.RoleAdmin))

	route("POST /orders", mw.Require(orderHandler.HandleCreate))
	route("GET /orders", mw.Require(orderHandler.HandleList))
	route("GET /orders/{id}", mw.Require(orderHandler.HandleGet))
	route("PUT /orders/{id}/status", mw.Require(orderHandler.HandleUpdateStatus))

	route("POST /movements", mw.RequireRole(inventoryHandler.HandleRegisterMovement, domain.RoleAdmin, domain.RoleProvider))
	route("GET /movements", mw.RequireRole(inventoryHandler.HandleListMovements, domain.RoleAdmin, domain.RoleProvider))
	route("GET /inventory/low-stock", mw.RequireRole(inventoryHandler.HandleLowStock, domain.RoleAdmin, domain.RoleProvider))

	mux.Handle("GET /metrics", tel.MetricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting marketplace api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
