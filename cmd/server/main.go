package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arunika-id/arunika/internal"
	"github.com/arunika-id/arunika/internal/billing"
	"github.com/arunika-id/arunika/internal/catalog"
	"github.com/arunika-id/arunika/internal/cookie"
	"github.com/arunika-id/arunika/internal/handler/api"
	"github.com/arunika-id/arunika/internal/handler/webhook"
	"github.com/arunika-id/arunika/internal/jobs"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/notify"
	"github.com/arunika-id/arunika/internal/router"
	"github.com/arunika-id/arunika/internal/routes"
	"github.com/arunika-id/arunika/internal/service"
	"github.com/arunika-id/arunika/internal/shipping"
	"github.com/arunika-id/arunika/internal/store"
	"github.com/arunika-id/arunika/internal/telemetry"
	"github.com/arunika-id/arunika/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize business metrics before anything that records them
	telemetry.InitBusinessMetrics("arunika")

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

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

	// Initialize pgx connection pool for the application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)

	// Load the catalog seed
	cat, err := catalog.NewFileCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("Catalog loaded", "path", cfg.CatalogPath, "variants", cat.Len())

	// Initialize payment gateway provider
	gateway, err := billing.NewSnapProvider(billing.SnapConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		ServerKey: cfg.Gateway.ServerKey,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	// Initialize shipping provider
	var shippingProvider shipping.Provider
	switch cfg.Shipping.Provider {
	case "rajaongkir":
		shippingProvider, err = shipping.NewRajaOngkirProvider(shipping.RajaOngkirConfig{
			BaseURL:          cfg.Shipping.BaseURL,
			APIKey:           cfg.Shipping.APIKey,
			OriginPostalCode: cfg.Shipping.OriginPostalCode,
			Logger:           logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize shipping provider: %w", err)
		}
	default:
		shippingProvider = shipping.NewFlatRateProvider([]shipping.FlatRate{
			{CarrierCode: "jne", ServiceCode: "REG", Description: "Regular Service", Cost: 20000, DaysMin: 2, DaysMax: 4},
			{CarrierCode: "jne", ServiceCode: "YES", Description: "Next Day Service", Cost: 45000, DaysMin: 1, DaysMax: 1},
		})
	}
	logger.Info("Shipping provider initialized", "provider", cfg.Shipping.Provider)

	// Initialize notifier. Without a NATS URL lifecycle events are dropped.
	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.URL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
		logger.Info("NATS notifier connected", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	} else {
		logger.Warn("NATS_URL not set, lifecycle events will be dropped")
	}

	// Initialize services
	cartService := service.NewCartService(st, cat, logger)
	checkoutService := service.NewCheckoutService(st, shippingProvider, logger)
	orderService := service.NewOrderService(st, gateway, notifier, service.OrderConfig{
		DownPaymentPercent: cfg.Gateway.DownPaymentPercent,
		SessionExpiry:      cfg.Gateway.SessionExpiry,
	}, logger)
	recoveryService := service.NewRecoveryService(st, cat, notifier, service.RecoveryConfig{
		TokenTTL: cfg.Recovery.TokenTTL,
	}, logger)
	invoiceService := service.NewInvoiceService(st, cfg.MerchantName, logger)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	orderHandler := api.NewOrderHandler(orderService, invoiceService)
	apiDeps := routes.APIDeps{
		CartHandler:     api.NewCartHandler(cartService),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService),
		OrderHandler:    orderHandler,
		RecoveryHandler: api.NewRecoveryHandler(recoveryService),
	}

	webhookDeps := routes.WebhookDeps{
		PaymentHandler: webhook.NewPaymentHandler(orderService),
	}

	metrics := middleware.NewMetrics("arunika")
	opsDeps := routes.OpsDeps{
		MetricsHandler: metrics.Handler(),
		Healthcheck: func(w http.ResponseWriter, r *http.Request) {
			pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(pingCtx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		},
		FulfillmentHandler: orderHandler.AdvanceFulfillment,
		OperatorAuth:       middleware.RequireOperatorKey(cfg.OperatorKey),
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	chain := []router.Middleware{
		router.Recovery(logger),
		middleware.RequestID,
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		chain = append(chain, router.CORS(cfg.CORSAllowedOrigins))
	}
	chain = append(chain,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		defaultRateLimiter.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)
	r := router.New(chain...)

	// Webhooks and ops endpoints skip the owner cookie; the gateway and
	// the scraper are not shoppers.
	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterOpsRoutes(r, opsDeps)

	cookies := cookie.NewConfig(cfg.Env == "prod")
	apiRouter := r.Group(middleware.WithOwner(cookies))
	routes.RegisterAPIRoutes(apiRouter, apiDeps)

	// ==========================================================================
	// Start background worker
	// ==========================================================================

	w := worker.NewWorker(
		worker.Config{SweepInterval: cfg.Recovery.SweepInterval},
		logger,
		jobs.NewAbandonedCartJob(st, recoveryService, cfg.Recovery.IdleThreshold, logger),
		jobs.NewTokenCleanupJob(st, logger),
	)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", "error", err)
		}
	}()

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-workerDone

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
