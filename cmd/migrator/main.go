package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/klture/creditwallet/internal/config"
	"github.com/klture/creditwallet/internal/database"
	"github.com/klture/creditwallet/internal/logging"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", ".env", "path to the .env file")
	steps := flag.Int("steps", 1, "migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = database.MigrateUp(db, logger)
	case "down":
		err = database.MigrateDown(db, *steps, logger)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = database.Version(db)
		if err == nil {
			logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
