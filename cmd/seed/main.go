// Command seed loads the initial tenants, admin users and a sample project.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ealanisln/alanis-backend/internal/seed"
	"github.com/Ealanisln/alanis-backend/pkg/config"
	"github.com/Ealanisln/alanis-backend/pkg/database"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	seedCfg := seed.DefaultConfig()
	flag.StringVar(&seedCfg.AdminPassword, "admin-password", seedCfg.AdminPassword, "password for the seeded admin users")
	flag.IntVar(&seedCfg.BcryptCost, "bcrypt-cost", seedCfg.BcryptCost, "bcrypt cost for the admin password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.InitLogger(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "alanis-seed",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	db, err := database.Open(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	result, err := seed.Run(ctx, db, seedCfg)
	if err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}
	log.Info("Database seeding completed",
		zap.String("alanis_tenant_id", result.AlanisTenantID),
		zap.String("cherry_pop_tenant_id", result.CherryPopTenantID),
		zap.String("client_id", result.ClientID),
		zap.String("project_id", result.ProjectID),
	)
}
