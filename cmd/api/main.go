package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/franchisepos-backend/api/routes"
	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/internal/capabilities"
	"github.com/angelmondragon/franchisepos-backend/internal/displaysync"
	"github.com/angelmondragon/franchisepos-backend/internal/ledger"
	product "github.com/angelmondragon/franchisepos-backend/internal/products"
	"github.com/angelmondragon/franchisepos-backend/internal/refunds"
	"github.com/angelmondragon/franchisepos-backend/internal/sales"
	"github.com/angelmondragon/franchisepos-backend/internal/shifts"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/instance"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/migrate"
	"github.com/angelmondragon/franchisepos-backend/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	infra := routes.Infra{DB: dbClient}
	var displayStore displaysync.Store
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		if !cfg.App.IsDev() {
			logg.Error(context.Background(), "redis is required outside dev", errors.New("redis not configured"))
			os.Exit(1)
		}
		// single-process dev mode: display sync in memory, no HTTP replay cache
		logg.Warn(context.Background(), "redis not configured, using in-memory display sync")
		displayStore = displaysync.NewMemoryStore()
	} else {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		infra.Redis = redisClient
		infra.Idempotency = redisClient
		displayStore = displaysync.NewRedisStore(redisClient, cfg.DisplaySync.StateTTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	infra.Metrics = registry
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	displayMetrics := metrics.NewDisplayMetrics(registry)

	services, err := buildServices(cfg, logg, dbClient, displayStore, ledgerMetrics, displayMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, infra, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	displayStore displaysync.Store,
	ledgerMetrics *metrics.LedgerMetrics,
	displayMetrics *metrics.DisplayMetrics,
) (routes.Services, error) {
	conn := dbClient.DB()
	ledgerRepo := ledger.NewRepository(conn)
	guard := shifts.NewGuard()

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	capabilitySvc, err := capabilities.NewService(capabilities.NewRepository(conn), auditSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return routes.Services{}, err
	}
	shiftSvc, err := shifts.NewService(shifts.NewRepository(conn), guard, dbClient, auditSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}
	saleSvc, err := sales.NewService(sales.ServiceParams{
		Repository:   ledgerRepo,
		Guard:        guard,
		DB:           dbClient,
		Capabilities: capabilitySvc,
		Audit:        auditSvc,
		Metrics:      ledgerMetrics,
		Logger:       logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	refundEngine, err := refunds.NewEngine(refunds.EngineParams{
		Repository: ledgerRepo,
		Guard:      guard,
		DB:         dbClient,
		Audit:      auditSvc,
		Metrics:    ledgerMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	displaySvc, err := displaysync.NewService(displayStore, cfg.DisplaySync, displayMetrics, logg)
	if err != nil {
		return routes.Services{}, err
	}
	productSvc, err := product.NewService(product.NewRepository(conn), cfg.Search)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Sales:        saleSvc,
		Refunds:      refundEngine,
		Ledger:       ledgerSvc,
		Shifts:       shiftSvc,
		Capabilities: capabilitySvc,
		Display:      displaySvc,
		Products:     productSvc,
		Audit:        auditSvc,
	}, nil
}
