package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/config"
	"github.com/klture/creditwallet/internal/database"
	"github.com/klture/creditwallet/internal/logging"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/klture/creditwallet/internal/services"
	"go.uber.org/zap"
)

// reconciler exits 1 when the ledger and the sales records disagree, so it can
// run from cron and page on failure.
func main() {
	envFile := flag.String("env", ".env", "path to the .env file")
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the audit after this long")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	store := repository.NewPostgresStore(db, cfg.Wallet.LockTimeout)
	reconciler := services.NewReconciliationService(store, audit.NewLogger(logger), logger)

	err = reconciler.Audit(ctx)
	var inconsistent *services.InconsistencyError
	switch {
	case err == nil:
		logger.Info("ledger and sales agree")
	case errors.As(err, &inconsistent):
		logger.Error("ledger inconsistent", zap.Int("findings", len(inconsistent.Findings)))
		logger.Sync()
		os.Exit(1)
	default:
		logger.Error("audit failed", zap.Error(err))
		logger.Sync()
		os.Exit(2)
	}
}
