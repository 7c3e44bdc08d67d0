package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/dukerupert/skuld/internal"
	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/handler"
	"github.com/dukerupert/skuld/internal/handler/webhook"
	"github.com/dukerupert/skuld/internal/invoice"
	"github.com/dukerupert/skuld/internal/postgres"
	"github.com/dukerupert/skuld/internal/pricing"
	"github.com/dukerupert/skuld/internal/reconcile"
	"github.com/dukerupert/skuld/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize business metrics
	telemetry.InitBusinessMetrics()

	// Initialize persistence
	orderRepo := postgres.NewOrderRepository(pool)
	invoiceFactory := postgres.NewInvoiceFactory(pool)
	memoFactory := postgres.NewCreditMemoFactory(pool)

	// Initialize the audit trail and pricing configuration
	trail := audit.NewLogger(logger)
	store := pricing.NewStore(cfg.Gateway.PaymentFee)

	// Initialize reconcilers and services
	reconciler := reconcile.NewTransactionReconciler(orderRepo, trail)
	projector := invoice.NewProjector(store, trail)
	invoiceService := invoice.NewService(orderRepo, invoiceFactory, memoFactory, trail)

	logger.Info("Gateway reconciliation services initialized",
		"account_number", cfg.Gateway.AccountNumber,
		"payment_fee", cfg.Gateway.PaymentFee,
	)

	// Build handlers
	payexHandler := webhook.NewPayexHandler(orderRepo, reconciler, invoiceService, trail)
	printHandler := handler.NewInvoicePrintHandler(orderRepo, projector)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/payex", payexHandler.HandleCallback)
	mux.Handle("/orders/invoice-print", printHandler)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting callback server", "address", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
