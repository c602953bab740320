package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/franchisepos-backend/internal/displaysync/viewer"
	"github.com/angelmondragon/franchisepos-backend/internal/offline"
	"github.com/angelmondragon/franchisepos-backend/pkg/apiclient"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const serviceName = "register-agent"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.LoadAgent()
	if err != nil {
		logg.Error(context.Background(), "failed to load agent config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{ServiceName: serviceName, Level: logger.ParseLevel(cfg.LogLevel)})

	conn, err := offline.OpenLocal(cfg.QueuePath)
	if err != nil {
		logg.Error(context.Background(), "failed to open offline queue", err)
		os.Exit(1)
	}
	defer func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	client, err := apiclient.NewClient(cfg.APIBaseURL, cfg.Token,
		apiclient.WithDeviceID(cfg.DeviceID),
		apiclient.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build api client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	queue, err := offline.NewQueue(offline.Params{
		DB:         conn,
		Submitter:  client,
		Metrics:    metrics.NewOfflineMetrics(registry),
		JobMetrics: metrics.NewJobMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build offline queue", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"device_id":  cfg.DeviceID,
		"queue_path": cfg.QueuePath,
	})

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry, logg); err != nil {
				logg.Error(ctx, "metrics endpoint stopped", err)
			}
		}()
	}

	if cfg.StationID != "" {
		go runDisplay(ctx, cfg, client, logg)
	}

	if cfg.CaptureAddr != "" {
		go func() {
			if err := serveCapture(ctx, cfg.CaptureAddr, captureRouter(queue, logg), logg); err != nil {
				logg.Error(ctx, "capture endpoint stopped", err)
			}
		}()
	}

	a := &agent{api: client, queue: queue, logg: logg, interval: cfg.ReconnectInterval}
	logg.Info(ctx, "starting register agent")
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "register agent stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "register agent shutting down")
}

// runDisplay mirrors the station's cart for a customer-facing screen attached
// to this terminal. Rendering is left to the screen; state changes are logged.
func runDisplay(ctx context.Context, cfg *config.AgentConfig, client *apiclient.Client, logg *logger.Logger) {
	ctx = logg.WithStationID(ctx, cfg.StationID)
	channel := client.DisplayChannel(cfg.StationID, "", cfg.DisplayWait)
	v := viewer.New(viewer.Options{
		Channel: channel,
		Logger:  logg,
		OnChange: func(state types.DisplayState) {
			logg.Debug(logg.WithFields(ctx, map[string]any{
				"status": state.Status.String(),
				"items":  len(state.Items),
				"total":  state.Total.String(),
			}), "customer display updated")
		},
	})
	poller := viewer.NewPoller(channel, v, viewer.PollerOptions{
		Interval: cfg.DisplayPollInterval,
		Logger:   logg,
	})
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "display poller stopped", err)
	}
}
