package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/klture/creditwallet/docs"
	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/config"
	"github.com/klture/creditwallet/internal/database"
	"github.com/klture/creditwallet/internal/handlers"
	"github.com/klture/creditwallet/internal/logging"
	mW "github.com/klture/creditwallet/internal/middleware"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/klture/creditwallet/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Credit Wallet API
// @version 1.0
// @description Prepaid credit wallet for program purchases and top-ups
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	var (
		store   repository.Store
		catalog services.Catalog
		db      *sql.DB
	)
	switch cfg.Wallet.Store {
	case "memory":
		logger.Warn("using in-memory ledger; balances are lost on restart")
		store = repository.NewMemoryStore()
		catalog = services.NewStaticCatalog(services.DefaultPrograms()...)
	default:
		db, err = database.OpenPostgres(startCtx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()

		if err := database.MigrateUp(db, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		store = repository.NewPostgresStore(db, cfg.Wallet.LockTimeout)
		catalog = services.NewCatalogService(db)
	}

	redisClient := database.OpenRedis(startCtx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger(logger)
	balances := services.NewBalanceService(store, redisClient, cfg.Wallet.BalanceCacheTTL, logger)
	ledger := services.NewLedgerService(store, balances, auditLogger, logger)
	coordinator := services.NewPurchaseCoordinator(store, catalog, balances, auditLogger, logger)
	reconciler := services.NewReconciliationService(store, auditLogger, logger)

	api := handlers.Handlers{
		Wallet: handlers.NewWalletHandler(ledger, balances, coordinator, catalog, logger),
		TopUp:  handlers.NewTopUpHandler(newTopUpService(redisClient, ledger, cfg.Wallet, logger), logger),
		Admin:  handlers.NewAdminHandler(ledger, balances, reconciler, logger),
	}
	auth := mW.NewAuthenticator(cfg.JWTSecret)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// An empty origin list would make cors allow every origin, so without
	// configured origins the API stays same-origin.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.IdempotencyHeader},
			ExposedHeaders:   []string{handlers.IdempotencyHeader},
			AllowCredentials: cfg.CORSCredentials(),
			MaxAge:           86400,
		}))
	} else {
		logger.Info("CORS disabled, no allowed origins configured")
	}

	r.Get("/health", handlers.Health)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Mount("/api/v1", api.Routes(auth.Middleware))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("store", cfg.Wallet.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newTopUpService returns nil without Redis; voucher endpoints then answer 503.
func newTopUpService(rdb *redis.Client, ledger *services.LedgerService, cfg config.WalletConfig, logger *zap.Logger) *services.TopUpService {
	if rdb == nil {
		return nil
	}
	return services.NewTopUpService(rdb, ledger, services.VoucherConfig{
		TTL:          cfg.VoucherTTL,
		MaxAmount:    cfg.VoucherMaxAmount,
		MaxPerWindow: cfg.VoucherMaxPerWindow,
		Window:       cfg.VoucherWindow,
	}, logger)
}
