package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"currency-ledger/config"
	httpHandler "currency-ledger/internal/adapter/http/handler"
	"currency-ledger/internal/adapter/storage/memory"
	pgStorage "currency-ledger/internal/adapter/storage/postgres"
	redisStorage "currency-ledger/internal/adapter/storage/redis"
	"currency-ledger/internal/core/ports"
	"currency-ledger/internal/service"
	"currency-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// storage is the set of ports one storage driver provides.
type storage struct {
	currencies  ports.CurrencyRepository
	accounts    ports.AccountRepository
	records     ports.RecordRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Currency Ledger")

	ctx := context.Background()

	var store storage
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		mem := memory.NewStore(cfg.Database.LockTimeout)
		store = storage{
			currencies:  memory.NewCurrencyRepo(mem),
			accounts:    memory.NewAccountRepo(mem),
			records:     memory.NewRecordRepo(mem),
			idempotency: memory.NewIdempotencyRepo(mem),
			audit:       memory.NewAuditRepo(mem),
			transactor:  memory.NewTransactor(mem),
			health:      memory.HealthCheck{},
			close:       func() {},
		}
		log.Warn().Msg("Using in-memory storage, records are lost on exit")

	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		store = storage{
			currencies:  pgStorage.NewCurrencyRepo(pool),
			accounts:    pgStorage.NewAccountRepo(pool),
			records:     pgStorage.NewRecordRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			audit:       pgStorage.NewAuditRepository(pool),
			transactor:  pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}
		log.Info().Msg("PostgreSQL connected")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis backs the idempotency fast path and rate limiting. Without it,
	// idempotency keys are checked in the store only and rate limits are off.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, rate limits are not enforced")
	}

	// Initialize services
	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))
	ledgerSvc := service.NewLedgerService(
		store.records,
		store.currencies,
		store.accounts,
		store.idempotency,
		idempotencyCache,
		auditSvc,
		store.transactor,
		cfg.Ledger.IdempotencyTTL,
		logger.Component(log, "ledger"),
	)
	catalogSvc := service.NewCatalogService(store.currencies, store.accounts, store.records, auditSvc, logger.Component(log, "catalog"))

	var tokenSvc ports.TokenService
	if cfg.JWT.Secret != "" {
		tokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	} else {
		log.Warn().Msg("jwt.secret is empty, mutating routes are open")
	}

	// Load OpenAPI spec for Swagger UI
	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err == nil {
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		CatalogSvc:     catalogSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		HealthCheckers: healthCheckers,
		OpenAPISpec:    specBytes,
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
