// Package offline keeps a register selling while the API is unreachable and
// replays what it captured, in order, once the connection is back.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const drainJob = "offline_drain"

// Submitter replays captured mutations against the API.
type Submitter interface {
	SubmitSale(ctx context.Context, req types.SaleRequest) (*types.TransactionView, error)
	SubmitRefund(ctx context.Context, req types.RefundRequest) (*types.TransactionView, error)
}

// Gate is the operator's acceptance of offline card risk.
type Gate struct {
	TermsAccepted    bool       `json:"termsAccepted"`
	RiskAcknowledged bool       `json:"riskAcknowledged"`
	TermsAcceptedAt  *time.Time `json:"termsAcceptedAt,omitempty"`
	RiskAcceptedAt   *time.Time `json:"riskAcknowledgedAt,omitempty"`
}

// Enabled reports whether offline card payments are allowed.
func (g Gate) Enabled() bool {
	return g.TermsAccepted && g.RiskAcknowledged
}

// Receipt is what the register shows for a provisionally complete capture.
type Receipt struct {
	Seq            int64                 `json:"seq"`
	IdempotencyKey string                `json:"idempotencyKey"`
	Operation      enums.QueuedOperation `json:"operation"`
	CapturedAt     time.Time             `json:"capturedAt"`
	Synced         bool                  `json:"synced"`
}

// Rejection is a replay the server refused for good.
type Rejection struct {
	Seq            int64
	IdempotencyKey string
	Code           pkgerrors.Code
	Err            error
}

// DrainReport summarizes one reconnect cycle.
type DrainReport struct {
	Synced    int
	Rejected  []Rejection
	Remaining int64
	// Deferred is the transient error that stopped the cycle, if any.
	Deferred error
}

// Errors combines every rejection into one error for logging.
func (r DrainReport) Errors() error {
	var combined error
	for _, rej := range r.Rejected {
		combined = multierr.Append(combined, fmt.Errorf("seq %d (%s): %w", rej.Seq, rej.IdempotencyKey, rej.Err))
	}
	return combined
}

type Params struct {
	DB         *gorm.DB
	Submitter  Submitter
	Metrics    *metrics.OfflineMetrics
	JobMetrics *metrics.JobMetrics
	Logger     *logger.Logger
}

// Queue is the terminal's durable capture log.
type Queue struct {
	store      *store
	submitter  Submitter
	metrics    *metrics.OfflineMetrics
	jobMetrics *metrics.JobMetrics
	logg       *logger.Logger
	now        func() time.Time
	newKey     func() string

	drainMu sync.Mutex
}

func NewQueue(p Params) (*Queue, error) {
	if p.DB == nil {
		return nil, errors.New("queue database required")
	}
	if p.Submitter == nil {
		return nil, errors.New("submitter required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Queue{
		store:      &store{db: p.DB},
		submitter:  p.Submitter,
		metrics:    p.Metrics,
		jobMetrics: p.JobMetrics,
		logg:       p.Logger,
		now:        func() time.Time { return time.Now().UTC() },
		newKey:     uuid.NewString,
	}, nil
}

// Gate returns the stored acceptance state.
func (q *Queue) Gate(ctx context.Context) (Gate, error) {
	row, err := q.store.gate(ctx)
	if err != nil {
		return Gate{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offline gate")
	}
	return Gate{
		TermsAccepted:    row.TermsAcceptedAt != nil,
		RiskAcknowledged: row.RiskAcknowledgedAt != nil,
		TermsAcceptedAt:  row.TermsAcceptedAt,
		RiskAcceptedAt:   row.RiskAcknowledgedAt,
	}, nil
}

// AcceptTerms records the general offline terms. Repeat calls keep the
// first timestamp.
func (q *Queue) AcceptTerms(ctx context.Context) (Gate, error) {
	return q.updateGate(ctx, func(row *models.OfflineGateState, now time.Time) {
		if row.TermsAcceptedAt == nil {
			row.TermsAcceptedAt = &now
		}
	})
}

// AcknowledgeRisk records the financial risk acknowledgment.
func (q *Queue) AcknowledgeRisk(ctx context.Context) (Gate, error) {
	return q.updateGate(ctx, func(row *models.OfflineGateState, now time.Time) {
		if row.RiskAcknowledgedAt == nil {
			row.RiskAcknowledgedAt = &now
		}
	})
}

func (q *Queue) updateGate(ctx context.Context, mutate func(*models.OfflineGateState, time.Time)) (Gate, error) {
	row, err := q.store.gate(ctx)
	if err != nil {
		return Gate{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offline gate")
	}
	mutate(&row, q.now())
	if err := q.store.saveGate(ctx, row); err != nil {
		return Gate{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save offline gate")
	}
	gate, err := q.Gate(ctx)
	if err == nil && gate.Enabled() {
		q.logg.Info(ctx, "offline card payments enabled on this terminal")
	}
	return gate, err
}

// CaptureSale appends a sale taken while offline. Card sales need the gate.
func (q *Queue) CaptureSale(ctx context.Context, req types.SaleRequest) (*Receipt, error) {
	if req.PaymentMethod == enums.PaymentMethodCard {
		gate, err := q.Gate(ctx)
		if err != nil {
			return nil, err
		}
		if !gate.Enabled() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offline card payments require accepted terms and risk acknowledgment").
				WithDetails(map[string]any{
					"termsAccepted":    gate.TermsAccepted,
					"riskAcknowledged": gate.RiskAcknowledged,
				})
		}
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale has no items")
	}
	capturedAt := q.now()
	req.IdempotencyKey = q.keyFor(req.IdempotencyKey)
	req.Offline = true
	req.CapturedAt = &capturedAt
	return q.capture(ctx, enums.QueuedOperationSale, req.IdempotencyKey, capturedAt, req)
}

// CaptureRefund appends a refund taken while offline.
func (q *Queue) CaptureRefund(ctx context.Context, req types.RefundRequest) (*Receipt, error) {
	if req.OriginalTransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "originalTransactionId is required")
	}
	capturedAt := q.now()
	req.IdempotencyKey = q.keyFor(req.IdempotencyKey)
	req.Offline = true
	req.CapturedAt = &capturedAt
	return q.capture(ctx, enums.QueuedOperationRefund, req.IdempotencyKey, capturedAt, req)
}

func (q *Queue) keyFor(existing string) string {
	if existing != "" {
		return existing
	}
	return q.newKey()
}

func (q *Queue) capture(ctx context.Context, op enums.QueuedOperation, key string, capturedAt time.Time, body any) (*Receipt, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode offline payload")
	}
	item := &models.OfflineQueueItem{
		IdempotencyKey: key,
		Operation:      op,
		Status:         enums.QueueItemPending,
		Payload:        payload,
		CapturedAt:     capturedAt,
	}
	if err := q.store.append(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append offline queue")
	}
	q.logg.Info(q.logg.WithFields(ctx, map[string]any{
		"seq":             item.Seq,
		"operation":       op.String(),
		"idempotency_key": key,
	}), "captured offline")
	q.refreshDepth(ctx)
	return &Receipt{Seq: item.Seq, IdempotencyKey: key, Operation: op, CapturedAt: capturedAt}, nil
}

// Pending lists unsynced captures in capture order.
func (q *Queue) Pending(ctx context.Context) ([]models.OfflineQueueItem, error) {
	return q.store.list(ctx, enums.QueueItemPending)
}

// ReviewList lists captures the server rejected, with their errors.
func (q *Queue) ReviewList(ctx context.Context) ([]models.OfflineQueueItem, error) {
	return q.store.list(ctx, enums.QueueItemRejected)
}

// Dismiss removes a reviewed rejection.
func (q *Queue) Dismiss(ctx context.Context, seq int64) error {
	removed, err := q.store.removeRejected(ctx, seq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dismiss rejected item")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "rejected item not found")
	}
	return nil
}

// Drain replays pending captures one at a time in capture order. A transient
// failure stops the cycle and keeps the item at the head of the queue; a
// permanent one parks the item for review and the cycle continues.
func (q *Queue) Drain(ctx context.Context) (DrainReport, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	start := time.Now()
	report, err := q.drain(ctx)
	q.jobMetrics.ObserveDuration(drainJob, time.Since(start))
	if err != nil || report.Deferred != nil {
		q.jobMetrics.IncFailure(drainJob)
	} else {
		q.jobMetrics.IncSuccess(drainJob)
	}

	if remaining, cerr := q.store.count(ctx, enums.QueueItemPending); cerr == nil {
		report.Remaining = remaining
		q.metrics.SetDepth(remaining)
	}
	return report, err
}

func (q *Queue) drain(ctx context.Context) (DrainReport, error) {
	var report DrainReport
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item, err := q.store.next(ctx)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read offline queue")
		}
		if item == nil {
			return report, nil
		}

		itemCtx := q.logg.WithFields(ctx, map[string]any{
			"seq":             item.Seq,
			"operation":       item.Operation.String(),
			"idempotency_key": item.IdempotencyKey,
		})
		submitErr := q.replay(ctx, item)
		switch {
		case submitErr == nil:
			if err := q.store.remove(ctx, item.Seq); err != nil {
				return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove synced item")
			}
			report.Synced++
			q.metrics.IncReplay("synced")
			q.logg.Info(itemCtx, "offline item synced")

		case retryLater(submitErr):
			if err := q.store.deferItem(ctx, item.Seq, submitErr.Error()); err != nil {
				return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "defer offline item")
			}
			report.Deferred = submitErr
			q.metrics.IncReplay("deferred")
			q.logg.Warn(q.logg.WithField(itemCtx, "error", submitErr.Error()), "offline replay deferred")
			return report, nil

		default:
			code := pkgerrors.CodeInternal
			if typed := pkgerrors.As(submitErr); typed != nil {
				code = typed.Code()
			}
			if err := q.store.reject(ctx, item.Seq, string(code), submitErr.Error(), q.now()); err != nil {
				return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject offline item")
			}
			report.Rejected = append(report.Rejected, Rejection{
				Seq:            item.Seq,
				IdempotencyKey: item.IdempotencyKey,
				Code:           code,
				Err:            submitErr,
			})
			q.metrics.IncReplay("rejected")
			q.logg.Warn(q.logg.WithFields(itemCtx, map[string]any{
				"code":  string(code),
				"error": submitErr.Error(),
			}), "offline replay rejected, moved to review")
		}
	}
}

// retryLater reports whether a replay error should leave the item queued.
// A conflict means another request holds the same key and its result is not readable yet.
func retryLater(err error) bool {
	return pkgerrors.IsTransient(err) || pkgerrors.HasCode(err, pkgerrors.CodeConflict)
}

func (q *Queue) replay(ctx context.Context, item *models.OfflineQueueItem) error {
	switch item.Operation {
	case enums.QueuedOperationSale:
		var req types.SaleRequest
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode queued sale")
		}
		req.IdempotencyKey = item.IdempotencyKey
		_, err := q.submitter.SubmitSale(ctx, req)
		return err
	case enums.QueuedOperationRefund:
		var req types.RefundRequest
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode queued refund")
		}
		req.IdempotencyKey = item.IdempotencyKey
		_, err := q.submitter.SubmitRefund(ctx, req)
		return err
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown queued operation").
			WithDetails(map[string]any{"operation": string(item.Operation)})
	}
}

func (q *Queue) refreshDepth(ctx context.Context) {
	if n, err := q.store.count(ctx, enums.QueueItemPending); err == nil {
		q.metrics.SetDepth(n)
	}
}
