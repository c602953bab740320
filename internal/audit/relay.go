package audit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/redis"
)

const (
	relayJobName          = "audit_relay"
	defaultBatchSize      = 50
	defaultPollInterval   = time.Second
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// RelayParams wires the audit relay.
type RelayParams struct {
	DB           txRunner
	Repository   Repository
	Publisher    publisher
	Lock         redis.Lock
	Logger       *logger.Logger
	Metrics      *metrics.RelayMetrics
	JobMetrics   *metrics.JobMetrics
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// Relay moves unpublished audit events to Pub/Sub. The Redis lock keeps a
// single replica publishing at a time.
type Relay struct {
	db           txRunner
	repo         Repository
	pub          publisher
	lock         redis.Lock
	logg         *logger.Logger
	metrics      *metrics.RelayMetrics
	jobs         *metrics.JobMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("audit repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Lock == nil {
		return nil, errors.New("relay lock is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Relay{
		db:           params.DB,
		repo:         params.Repository,
		pub:          params.Publisher,
		lock:         params.Lock,
		logg:         logg,
		metrics:      params.Metrics,
		jobs:         params.JobMetrics,
		batchSize:    batch,
		maxAttempts:  attempts,
		pollInterval: interval,
	}, nil
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.pollInterval
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "audit relay context canceled")
			return ctx.Err()
		default:
		}

		processed, err := r.ProcessBatch(ctx)
		if err != nil {
			r.logg.Error(ctx, "audit relay batch error", err)
			backoff = nextBackoff(backoff, r.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.pollInterval
		if processed {
			continue
		}
		if err := sleep(ctx, withJitter(r.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch publishes one batch. It reports whether any events were handled.
func (r *Relay) ProcessBatch(ctx context.Context) (bool, error) {
	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire relay lock: %w", err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if relErr := r.lock.Release(ctx); relErr != nil {
			r.logg.Error(ctx, "release relay lock", relErr)
		}
	}()

	start := time.Now()
	processed := false
	err = r.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		events, err := repo.FetchUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		r.metrics.SetBatch(len(events))
		if len(events) == 0 {
			return nil
		}
		processed = true

		for _, event := range events {
			fields := eventFields(event)
			if pubErr := r.publish(ctx, event); pubErr != nil {
				fields["attempt_count"] = event.AttemptCount + 1
				warnCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", pubErr.Error())
				r.logg.Warn(warnCtx, "audit publish failed")
				r.metrics.IncFailed()
				if markErr := repo.MarkFailed(ctx, event.ID, pubErr); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
				}
				continue
			}
			if markErr := repo.MarkPublished(ctx, event.ID); markErr != nil {
				return fmt.Errorf("mark published %s: %w", event.ID, markErr)
			}
			r.metrics.IncPublished()
			r.logg.Debug(r.logg.WithFields(ctx, fields), "audit event published")
		}
		return nil
	})
	if processed {
		r.jobs.ObserveDuration(relayJobName, time.Since(start))
		if err != nil {
			r.jobs.IncFailure(relayJobName)
		} else {
			r.jobs.IncSuccess(relayJobName)
		}
	}
	return processed, err
}

func (r *Relay) publish(ctx context.Context, event models.AuditEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := r.pub.Publish(publishCtx, event.Payload, map[string]string{
		"event_id":   event.ID.String(),
		"event_type": event.Type.String(),
		"tenant_id":  event.TenantID.String(),
		"entity_id":  event.EntityID.String(),
		"actor_id":   event.ActorID.String(),
		"created_at": event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	return err
}

func eventFields(event models.AuditEvent) map[string]any {
	fields := map[string]any{
		"audit_id":      event.ID.String(),
		"event_type":    event.Type.String(),
		"tenant_id":     event.TenantID.String(),
		"entity_id":     event.EntityID.String(),
		"attempt_count": event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
