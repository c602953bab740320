package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/internal/ledger"
	"github.com/angelmondragon/franchisepos-backend/internal/shifts"
	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	operation         = "refund"
	maxIdempotencyKey = 128
	maxLines          = 500
	maxReasonLength   = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is a refund request plus the authenticated principal issuing it.
type Input struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Request  types.RefundRequest
}

// Result carries the refund transaction. Replayed is set when an earlier
// commit with the same idempotency key answered the request.
type Result struct {
	Transaction *models.Transaction
	Replayed    bool
}

// Engine executes partial and full refunds.
type Engine interface {
	Refund(ctx context.Context, input Input) (*Result, error)
}

// EngineParams wires the refund engine. Audit and Metrics are optional.
type EngineParams struct {
	Repository ledger.Repository
	Guard      shifts.Guard
	DB         txRunner
	Audit      audit.Recorder
	Metrics    *metrics.LedgerMetrics
	Logger     *logger.Logger
}

type engine struct {
	repo    ledger.Repository
	guard   shifts.Guard
	tx      txRunner
	audit   audit.Recorder
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
}

func NewEngine(params EngineParams) (Engine, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("session guard required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &engine{
		repo:    params.Repository,
		guard:   params.Guard,
		tx:      params.DB,
		audit:   params.Audit,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// requestedLine is the aggregated quantity asked for one original line.
type requestedLine struct {
	line     models.LineItem
	quantity int
}

func (e *engine) Refund(ctx context.Context, input Input) (*Result, error) {
	result, err := e.refund(ctx, input)
	if err != nil {
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		e.metrics.IncRejected(operation, string(code))
		if code == pkgerrors.CodeInternal {
			e.logg.Error(e.logg.WithFields(ctx, map[string]any{
				"original_transaction_id": input.Request.OriginalTransactionID.String(),
				"error_dump":              pkgerrors.Dump(err),
			}), "refund commit failed", err)
		}
		return nil, err
	}
	return result, nil
}

func (e *engine) refund(ctx context.Context, input Input) (*Result, error) {
	req := input.Request
	if input.TenantID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated principal required")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if replay, err := e.replay(ctx, input.TenantID, key, req.OriginalTransactionID); replay != nil || err != nil {
			return replay, err
		}
	}

	// A closed or missing shift is reported ahead of any other problem with the request.
	if err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := e.guard.Require(ctx, tx, input.TenantID, req.CashDrawerSessionID)
		return err
	}); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	var refund *models.Transaction
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := e.guard.Require(ctx, tx, input.TenantID, req.CashDrawerSessionID)
		if err != nil {
			return err
		}

		repo := e.repo.WithTx(tx)
		original, err := repo.FindByID(ctx, req.OriginalTransactionID, true)
		if err != nil {
			return ledger.LookupError(err)
		}
		if original.TenantID != input.TenantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another tenant")
		}
		if original.Status != enums.TransactionStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "only completed transactions can be refunded").
				WithDetails(map[string]any{"status": original.Status.String()})
		}

		prior, err := repo.ListRefundsFor(ctx, original.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prior refunds")
		}
		tally := ledger.NewTally(original, prior)

		lines, err := resolveLines(req, original, tally)
		if err != nil {
			return err
		}
		if err := checkQuantities(lines, tally); err != nil {
			return err
		}

		refund = buildRefund(input, original, session.ID, lines, key)
		if err := repo.CreateTransaction(ctx, refund); err != nil {
			if key != "" && db.IsUniqueViolation(err, ledger.IdempotencyConstraint) {
				return errKeyRace
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create refund transaction")
		}
		if req.RefundType == enums.RefundTypeFull {
			if err := repo.UpdateStatus(ctx, original.ID, enums.TransactionStatusRefunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark original refunded")
			}
		}
		for _, l := range lines {
			if l.line.Type != enums.LineItemTypeProduct || l.line.ProductID == nil {
				continue
			}
			if err := repo.AdjustStock(ctx, input.TenantID, *l.line.ProductID, l.quantity); err != nil {
				if pkgerrors.As(err) != nil {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock product")
			}
		}
		return nil
	})
	if errors.Is(err, errKeyRace) {
		replay, replayErr := e.replay(ctx, input.TenantID, key, req.OriginalTransactionID)
		if replayErr != nil {
			return nil, replayErr
		}
		if replay != nil {
			return replay, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "concurrent refund with the same idempotency key")
	}
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveCommit(operation, refund.Total.InexactFloat64(), time.Since(start))
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"tenant_id":               input.TenantID.String(),
		"transaction_id":          refund.ID.String(),
		"original_transaction_id": req.OriginalTransactionID.String(),
		"cash_drawer_session_id":  refund.CashDrawerSessionID.String(),
		"refund_type":             req.RefundType.String(),
		"total":                   refund.Total.StringFixed(2),
	})
	e.logg.Info(logCtx, "refund committed")
	e.recordAudit(logCtx, input, refund)
	return &Result{Transaction: refund}, nil
}

var errKeyRace = errors.New("idempotency key inserted concurrently")

// replay answers a request whose key already produced a refund.
func (e *engine) replay(ctx context.Context, tenantID uuid.UUID, key string, originalID uuid.UUID) (*Result, error) {
	existing, err := e.repo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check idempotency key")
	}
	if existing.OriginalTransactionID == nil || *existing.OriginalTransactionID != originalID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for a different request").
			WithDetails(map[string]any{"idempotencyKey": key, "transactionId": existing.ID.String()})
	}
	e.metrics.IncReplay(operation)
	e.logg.Info(e.logg.WithField(ctx, "transaction_id", existing.ID.String()), "refund replayed from idempotency key")
	return &Result{Transaction: existing, Replayed: true}, nil
}

func validate(req types.RefundRequest) error {
	if req.OriginalTransactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "originalTransactionId is required")
	}
	if !req.RefundType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "refundType must be FULL or PARTIAL")
	}
	if !req.RefundMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "refundMethod is invalid")
	}
	if len(req.IdempotencyKey) > maxIdempotencyKey {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotencyKey is too long")
	}
	if len(req.Items) > maxLines {
		return pkgerrors.New(pkgerrors.CodeValidation, "a refund has too many items")
	}
	if req.RefundType == enums.RefundTypePartial && len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "partial refunds require at least one item")
	}
	for i, item := range req.Items {
		if item.LineItemID == uuid.Nil || item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund items need a line item and a positive quantity").
				WithDetails(map[string]any{"index": i})
		}
	}
	if len(req.Reason) > maxReasonLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
	}
	return nil
}

// resolveLines maps requested items onto original lines, merging repeats.
// A FULL refund without items takes everything still refundable.
func resolveLines(req types.RefundRequest, original *models.Transaction, tally *ledger.Tally) ([]requestedLine, error) {
	if req.RefundType == enums.RefundTypeFull && len(req.Items) == 0 {
		var lines []requestedLine
		for _, avail := range tally.Availability(original) {
			if avail.Remaining > 0 {
				lines = append(lines, requestedLine{line: avail.Line, quantity: avail.Remaining})
			}
		}
		if len(lines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "transaction has nothing left to refund")
		}
		return lines, nil
	}

	byID := make(map[uuid.UUID]models.LineItem, len(original.LineItems))
	for _, line := range original.LineItems {
		byID[line.ID] = line
	}
	index := map[uuid.UUID]int{}
	var lines []requestedLine
	for _, item := range req.Items {
		line, ok := byID[item.LineItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeLineItemNotFound, "line item not found on transaction").
				WithDetails(map[string]any{"lineItemId": item.LineItemID.String()})
		}
		if i, seen := index[line.ID]; seen {
			lines[i].quantity += item.Quantity
			continue
		}
		index[line.ID] = len(lines)
		lines = append(lines, requestedLine{line: line, quantity: item.Quantity})
	}
	return lines, nil
}

func checkQuantities(lines []requestedLine, tally *ledger.Tally) error {
	perIdentity := map[uuid.UUID]int{}
	for _, l := range lines {
		avail := tally.Line(l.line)
		if l.quantity > avail.Remaining {
			return overRefund(l.line, l.quantity, avail.Sold, avail.Sold-avail.Remaining, avail.Remaining)
		}
		if id, ok := l.line.ItemIdentity(); ok {
			perIdentity[id] += l.quantity
		}
	}
	for _, l := range lines {
		id, ok := l.line.ItemIdentity()
		if !ok {
			continue
		}
		avail := tally.Line(l.line)
		if left := tally.IdentityRemaining(id); perIdentity[id] > left {
			return overRefund(l.line, perIdentity[id], avail.IdentitySold, avail.IdentityRefunded, left)
		}
	}
	return nil
}

func overRefund(line models.LineItem, requested, sold, refunded, remaining int) error {
	details := map[string]any{
		"lineItemId":      line.ID.String(),
		"requested":       requested,
		"alreadyRefunded": refunded,
		"sold":            sold,
		"remaining":       remaining,
	}
	if line.ProductID != nil {
		details["productId"] = line.ProductID.String()
	} else if line.ServiceID != nil {
		details["serviceId"] = line.ServiceID.String()
	}
	return pkgerrors.New(pkgerrors.CodeOverRefund, fmt.Sprintf("only %d remaining refundable", remaining)).
		WithDetails(details)
}

func buildRefund(input Input, original *models.Transaction, sessionID uuid.UUID, lines []requestedLine, key string) *models.Transaction {
	req := input.Request
	subtotal := decimal.Zero
	items := make([]models.LineItem, 0, len(lines))
	for _, l := range lines {
		total := ledger.LineTotal(l.line.Price, l.quantity, l.line.DiscountPercent)
		subtotal = subtotal.Add(total)
		source := l.line.ID
		items = append(items, models.LineItem{
			Type:              l.line.Type,
			ProductID:         l.line.ProductID,
			ServiceID:         l.line.ServiceID,
			Name:              l.line.Name,
			Quantity:          -l.quantity,
			Price:             l.line.Price,
			DiscountPercent:   l.line.DiscountPercent,
			Total:             total.Neg(),
			StaffID:           l.line.StaffID,
			RefundsLineItemID: &source,
		})
	}
	tax := ledger.ProportionalTax(subtotal, original.Tax, original.Subtotal)

	refundType := req.RefundType
	originalID := original.ID
	txn := &models.Transaction{
		TenantID:              input.TenantID,
		LocationID:            original.LocationID,
		ClientID:              original.ClientID,
		EmployeeID:            input.ActorID,
		Status:                enums.TransactionStatusRefunded,
		PaymentMethod:         req.RefundMethod,
		Subtotal:              subtotal.Neg(),
		Tax:                   tax.Neg(),
		Tip:                   decimal.Zero,
		Total:                 subtotal.Add(tax).Neg(),
		OriginalTransactionID: &originalID,
		RefundType:            &refundType,
		CashDrawerSessionID:   sessionID,
		Offline:               req.Offline,
		CapturedAt:            req.CapturedAt,
		LineItems:             items,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		txn.Reason = &reason
	}
	if key != "" {
		txn.IdempotencyKey = &key
	}
	return txn
}

func (e *engine) recordAudit(ctx context.Context, input Input, refund *models.Transaction) {
	if e.audit == nil {
		return
	}
	entry := audit.Entry{
		TenantID: input.TenantID,
		ActorID:  input.ActorID,
		Type:     enums.AuditRefundCompleted,
		EntityID: refund.ID,
		Payload: map[string]any{
			"originalTransactionId": input.Request.OriginalTransactionID,
			"refundType":            input.Request.RefundType,
			"total":                 refund.Total.StringFixed(2),
			"method":                refund.PaymentMethod,
			"reason":                input.Request.Reason,
			"itemCount":             len(refund.LineItems),
		},
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.logg.Error(ctx, "failed to record refund audit event", err)
	}
}
