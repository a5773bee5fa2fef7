package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/adapter/daemon"
	"coin-tip-ledger/internal/adapter/events/kafka"
	httpHandler "coin-tip-ledger/internal/adapter/http/handler"
	"coin-tip-ledger/internal/adapter/metrics"
	pgStorage "coin-tip-ledger/internal/adapter/storage/postgres"
	redisStorage "coin-tip-ledger/internal/adapter/storage/redis"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/internal/service"
	"coin-tip-ledger/migrations"
	"coin-tip-ledger/pkg/logger"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var opts struct {
	ConfigFile string `short:"C" long:"config" description:"Path to config file (default: ./config.yaml or ./config/config.yaml)"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (CTL_JWT_SECRET)")
	}
	if len(cfg.Coins) == 0 {
		log.Fatal().Msg("no coins configured")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Int("coins", len(cfg.Coins)).
		Bool("allow_overdraft", cfg.Ledger.AllowOverdraft).
		Msg("Starting Coin Tip Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, migrations.FS, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Ledger events
	var events ports.EventPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher := kafka.NewPublisher(cfg.Kafka, log)
		defer publisher.Close()
		events = publisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka events enabled")
	}

	// Initialize repositories
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	walletLock := redisStorage.NewWalletLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	healthCheckers := []ports.HealthChecker{
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
	}

	// One gateway and one ledger per coin, in unit order for stable logs.
	units := make([]string, 0, len(cfg.Coins))
	for unit := range cfg.Coins {
		units = append(units, unit)
	}
	sort.Strings(units)

	ledgers := make([]ports.LedgerService, 0, len(units))
	for _, unit := range units {
		coinCfg := cfg.Coins[unit]

		gw := daemon.NewGateway(coinCfg, daemon.DialRPC, walletLock, cfg.Ledger.WalletLockTTL, m, log)
		if err := gw.Connect(ctx); err != nil {
			log.Fatal().Err(err).Str("coin", unit).Msg("Failed to connect to coin daemon")
		}
		defer gw.Close()
		healthCheckers = append(healthCheckers, gw)

		opts, err := service.NewLedgerOptions(coinCfg, cfg.Ledger)
		if err != nil {
			log.Fatal().Err(err).Str("coin", unit).Msg("Invalid coin configuration")
		}
		ledgers = append(ledgers, service.NewLedgerService(
			opts,
			gw,
			ledgerRepo,
			withdrawalRepo,
			idempotencyCache,
			events,
			transactor,
			m,
			log,
		))
	}

	registry := service.NewRegistry(ledgers...)
	reconcileSvc := service.NewReconcileService(ledgerRepo, withdrawalRepo, transactor, events, m, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Registry:        registry,
		Reconcile:       reconcileSvc,
		TokenSvc:        tokenSvc,
		RateLimiter:     rateLimitStore,
		HealthCheckers:  healthCheckers,
		AuditSvc:        auditSvc,
		MetricsGatherer: reg,
		Mode:            cfg.Server.Mode,
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Strs("coins", registry.Coins()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Withdrawals in flight finish their journal writes on a detached context,
	// so give them longer than a plain request.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
