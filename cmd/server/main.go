package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ealanisln/alanis-backend/internal/handler"
	"github.com/Ealanisln/alanis-backend/internal/integration/invoiceninja"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/outbox"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/Ealanisln/alanis-backend/pkg/config"
	"github.com/Ealanisln/alanis-backend/pkg/database"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.InitLogger(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "alanis-backend",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	log.Info("Starting Alanis backend...", cfg.LogFields()...)

	prometheus.InitMetrics(cfg.Metrics.Prefix)
	log.Info("Prometheus metrics initialized")

	db, err := database.Open(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations completed")
	}

	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:        cfg.JWT.Secret,
		RefreshSigningKey: cfg.JWT.RefreshSecret,
		AccessTTL:         cfg.JWT.Expiration,
		RefreshTTL:        cfg.JWT.RefreshExpiry,
		Issuer:            cfg.JWT.Issuer,
	})

	queue := outbox.New(outbox.Options{
		Workers:   cfg.Webhooks.Workers,
		QueueSize: cfg.Webhooks.QueueSize,
		Policy: outbox.RetryPolicy{
			MaxAttempts: cfg.Webhooks.MaxAttempts,
			BaseDelay:   cfg.Webhooks.RetryBaseDelay,
			MaxDelay:    cfg.Webhooks.RetryMaxDelay,
		},
	}, log)
	queue.Start()

	n8nClient := n8n.NewClient(cfg.Integrations.N8NWebhookURL, cfg.Integrations.N8NTimeout)
	workflows := n8n.NewDispatcher(n8nClient, queue)
	invoiceNinja := invoiceninja.NewClient(
		cfg.Integrations.InvoiceNinjaURL,
		cfg.Integrations.InvoiceNinjaAPIKey,
		cfg.Integrations.InvoiceNinjaTimeout,
	)
	if !n8nClient.Enabled() {
		log.Warn("N8N_WEBHOOK_URL not set, workflow webhooks disabled")
	}
	if !invoiceNinja.Enabled() {
		log.Warn("Invoice Ninja not configured, invoicing endpoints will fail")
	}

	tenants := service.NewTenantService(db, cfg.Tenancy.DefaultTenantID)
	services := handler.Services{
		Auth:         service.NewAuthService(db, tokens),
		Tenants:      tenants,
		Clients:      service.NewClientService(db),
		Projects:     service.NewProjectService(db, workflows),
		TimeTracking: service.NewTimeTrackingService(db, workflows),
		Quotes:       service.NewQuoteService(db, tenants, workflows),
		Contacts:     service.NewContactService(db, tenants),
		Invoicing:    service.NewInvoicingService(db, invoiceNinja, workflows),
		Integrations: service.NewIntegrationService(db, workflows, invoiceNinja, n8nClient),
	}

	e := handler.NewRouter(handler.RouterConfig{
		DB:              db,
		Tokens:          tokens,
		Logger:          log,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		PublicRateLimit: cfg.Server.PublicRateLimit,
	}, services)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := queue.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := database.Close(db); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}
