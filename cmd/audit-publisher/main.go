package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/instance"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/migrate"
	"github.com/angelmondragon/franchisepos-backend/pkg/pubsub"
	"github.com/angelmondragon/franchisepos-backend/pkg/redis"
)

const serviceName = "audit-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.Audit, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	lock, err := redis.NewRedisLock(redisClient, redisClient.LockKey("audit-relay"), cfg.Audit.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build relay lock", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	relay, err := audit.NewRelay(audit.RelayParams{
		DB:           dbClient,
		Repository:   audit.NewRepository(dbClient.DB()),
		Publisher:    pubsubClient,
		Lock:         lock,
		Logger:       logg,
		Metrics:      metrics.NewRelayMetrics(registry),
		JobMetrics:   metrics.NewJobMetrics(registry),
		BatchSize:    cfg.Audit.BatchSize,
		MaxAttempts:  cfg.Audit.MaxAttempts,
		PollInterval: time.Duration(cfg.Audit.PollIntervalMS) * time.Millisecond,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit relay", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"topic":    cfg.Audit.Topic,
		"instance": instance.GetID(),
	})

	if cfg.Audit.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Audit.MetricsAddr, registry, logg); err != nil {
				logg.Error(ctx, "metrics endpoint stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting audit publisher")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "audit publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "audit publisher shutting down gracefully")
}
