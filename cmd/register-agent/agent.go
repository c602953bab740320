package main

import (
	"context"
	"time"

	"github.com/angelmondragon/franchisepos-backend/internal/offline"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type remote interface {
	Ready(ctx context.Context) error
	OfflineCapability(ctx context.Context) (types.OfflineCapabilityView, error)
}

type localQueue interface {
	Gate(ctx context.Context) (offline.Gate, error)
	AcceptTerms(ctx context.Context) (offline.Gate, error)
	AcknowledgeRisk(ctx context.Context) (offline.Gate, error)
	Drain(ctx context.Context) (offline.DrainReport, error)
}

// agent checks the API on an interval and replays the queue whenever it is reachable.
type agent struct {
	api      remote
	queue    localQueue
	logg     *logger.Logger
	interval time.Duration
	online   bool
}

func (a *agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		a.cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs one reconnect attempt and returns the drain report when it drained.
func (a *agent) cycle(ctx context.Context) *offline.DrainReport {
	if err := a.api.Ready(ctx); err != nil {
		if a.online {
			a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "api unreachable, capturing offline")
		}
		a.online = false
		return nil
	}
	if !a.online {
		a.logg.Info(ctx, "api reachable, replaying offline queue")
	}
	a.online = true

	a.syncGate(ctx)

	report, err := a.queue.Drain(ctx)
	if err != nil {
		a.logg.Error(ctx, "offline drain failed", err)
		return nil
	}
	fields := map[string]any{
		"synced":    report.Synced,
		"rejected":  len(report.Rejected),
		"remaining": report.Remaining,
	}
	if report.Deferred != nil {
		fields["deferred"] = report.Deferred.Error()
	}
	logCtx := a.logg.WithFields(ctx, fields)
	if rejected := report.Errors(); rejected != nil {
		a.logg.Error(logCtx, "offline replays need review", rejected)
	} else if report.Synced > 0 || report.Deferred != nil {
		a.logg.Info(logCtx, "offline drain finished")
	}
	return &report
}

// syncGate mirrors a tenant-level acceptance into the local gate so card
// capture is allowed while the register is offline later.
func (a *agent) syncGate(ctx context.Context) {
	view, err := a.api.OfflineCapability(ctx)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "offline capability lookup failed")
		return
	}
	if !view.Enabled {
		return
	}
	gate, err := a.queue.Gate(ctx)
	if err != nil {
		a.logg.Error(ctx, "read local offline gate", err)
		return
	}
	if !gate.TermsAccepted {
		if _, err := a.queue.AcceptTerms(ctx); err != nil {
			a.logg.Error(ctx, "accept offline terms locally", err)
			return
		}
	}
	if !gate.RiskAcknowledged {
		if _, err := a.queue.AcknowledgeRisk(ctx); err != nil {
			a.logg.Error(ctx, "acknowledge offline risk locally", err)
		}
	}
}
