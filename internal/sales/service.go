package sales

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
	operation         = "sale"
	maxIdempotencyKey = 128
	maxLines          = 500
	maxNameLength     = 200
)

var maxDiscount = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// capabilityChecker reports whether a tenant accepted the offline card terms.
type capabilityChecker interface {
	IsOfflineEnabled(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// Input is a sale request plus the authenticated principal issuing it.
type Input struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Request  types.SaleRequest
}

// Result carries the committed sale. Replayed is set when the idempotency key
// had already produced it.
type Result struct {
	Transaction *models.Transaction
	Replayed    bool
}

// Service commits completed sales.
type Service interface {
	Commit(ctx context.Context, input Input) (*Result, error)
}

// ServiceParams wires the sale service. Audit and Metrics are optional.
type ServiceParams struct {
	Repository   ledger.Repository
	Guard        shifts.Guard
	DB           txRunner
	Capabilities capabilityChecker
	Audit        audit.Recorder
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
}

type service struct {
	repo         ledger.Repository
	guard        shifts.Guard
	tx           txRunner
	capabilities capabilityChecker
	audit        audit.Recorder
	metrics      *metrics.LedgerMetrics
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("session guard required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Capabilities == nil {
		return nil, fmt.Errorf("capability checker required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:         params.Repository,
		guard:        params.Guard,
		tx:           params.DB,
		capabilities: params.Capabilities,
		audit:        params.Audit,
		metrics:      params.Metrics,
		logg:         logg,
	}, nil
}

func (s *service) Commit(ctx context.Context, input Input) (*Result, error) {
	result, err := s.commit(ctx, input)
	if err != nil {
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		s.metrics.IncRejected(operation, string(code))
		if code == pkgerrors.CodeInternal {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"idempotency_key": input.Request.IdempotencyKey,
				"error_dump":      pkgerrors.Dump(err),
			}), "sale commit failed", err)
		}
		return nil, err
	}
	return result, nil
}

func (s *service) commit(ctx context.Context, input Input) (*Result, error) {
	req := input.Request
	if input.TenantID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated principal required")
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if replay, err := s.replay(ctx, input.TenantID, key); replay != nil || err != nil {
			return replay, err
		}
	}

	// A closed or missing shift is reported ahead of any other problem with the request.
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.guard.Require(ctx, tx, input.TenantID, req.CashDrawerSessionID)
		return err
	}); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	if req.Offline && req.PaymentMethod == enums.PaymentMethodCard {
		enabled, err := s.capabilities.IsOfflineEnabled(ctx, input.TenantID)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offline card payments are not enabled for this tenant")
		}
	}

	start := time.Now()
	var sale *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.guard.Require(ctx, tx, input.TenantID, req.CashDrawerSessionID)
		if err != nil {
			return err
		}
		sale = buildSale(input, session, key)

		repo := s.repo.WithTx(tx)
		if err := repo.CreateTransaction(ctx, sale); err != nil {
			if db.IsUniqueViolation(err, ledger.IdempotencyConstraint) {
				return errKeyRace
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale transaction")
		}
		for _, line := range sale.LineItems {
			if line.Type != enums.LineItemTypeProduct || line.ProductID == nil {
				continue
			}
			if err := repo.AdjustStock(ctx, input.TenantID, *line.ProductID, -line.Quantity); err != nil {
				if pkgerrors.As(err) != nil {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
		}
		return nil
	})
	if errors.Is(err, errKeyRace) {
		replay, replayErr := s.replay(ctx, input.TenantID, key)
		if replayErr != nil {
			return nil, replayErr
		}
		if replay != nil {
			return replay, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "concurrent sale with the same idempotency key")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveCommit(operation, sale.Total.InexactFloat64(), time.Since(start))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":              input.TenantID.String(),
		"transaction_id":         sale.ID.String(),
		"cash_drawer_session_id": sale.CashDrawerSessionID.String(),
		"total":                  sale.Total.StringFixed(2),
		"offline":                sale.Offline,
	})
	s.logg.Info(logCtx, "sale committed")
	s.recordAudit(logCtx, input, sale)
	return &Result{Transaction: sale}, nil
}

var errKeyRace = errors.New("idempotency key inserted concurrently")

func (s *service) replay(ctx context.Context, tenantID uuid.UUID, key string) (*Result, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check idempotency key")
	}
	if existing.OriginalTransactionID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for a refund").
			WithDetails(map[string]any{"idempotencyKey": key, "transactionId": existing.ID.String()})
	}
	s.metrics.IncReplay(operation)
	s.logg.Info(s.logg.WithField(ctx, "transaction_id", existing.ID.String()), "sale replayed from idempotency key")
	return &Result{Transaction: existing, Replayed: true}, nil
}

func validate(req types.SaleRequest) error {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotencyKey is required")
	}
	if len(req.IdempotencyKey) > maxIdempotencyKey {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotencyKey is too long")
	}
	if !req.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod is invalid")
	}
	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "a sale needs at least one item")
	}
	if len(req.Items) > maxLines {
		return pkgerrors.New(pkgerrors.CodeValidation, "a sale has too many items")
	}
	if req.TaxRatePercent.IsNegative() || req.Tip.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax rate and tip cannot be negative")
	}
	for i, item := range req.Items {
		if err := validateLine(item); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, err.Error()).WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

func validateLine(item types.SaleLine) error {
	switch item.Type {
	case enums.LineItemTypeProduct:
		if item.ProductID == nil || *item.ProductID == uuid.Nil {
			return errors.New("product lines need a productId")
		}
	case enums.LineItemTypeService:
		if item.ServiceID == nil || *item.ServiceID == uuid.Nil {
			return errors.New("service lines need a serviceId")
		}
	default:
		return errors.New("line type must be PRODUCT or SERVICE")
	}
	if item.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if len(item.Name) > maxNameLength {
		return errors.New("name is too long")
	}
	if item.Price.IsNegative() {
		return errors.New("price cannot be negative")
	}
	if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(maxDiscount) {
		return errors.New("discountPercent must be between 0 and 100")
	}
	return nil
}

func buildSale(input Input, session *models.CashDrawerSession, key string) *models.Transaction {
	req := input.Request
	subtotal := decimal.Zero
	lines := make([]models.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		// Totals derive from the stored, rounded price so refunds recompute the same figures.
		price := item.Price.Round(2)
		discount := item.DiscountPercent.Round(2)
		total := ledger.LineTotal(price, item.Quantity, discount)
		subtotal = subtotal.Add(total)
		lines = append(lines, models.LineItem{
			Type:            item.Type,
			ProductID:       item.ProductID,
			ServiceID:       item.ServiceID,
			Name:            strings.TrimSpace(item.Name),
			Quantity:        item.Quantity,
			Price:           price,
			DiscountPercent: discount,
			Total:           total,
			StaffID:         item.StaffID,
		})
	}
	tax := ledger.PercentOf(subtotal, req.TaxRatePercent)
	tip := req.Tip.Round(2)

	location := req.LocationID
	if location == nil {
		l := session.LocationID
		location = &l
	}
	return &models.Transaction{
		TenantID:            input.TenantID,
		LocationID:          location,
		ClientID:            req.ClientID,
		EmployeeID:          input.ActorID,
		Status:              enums.TransactionStatusCompleted,
		PaymentMethod:       req.PaymentMethod,
		Subtotal:            subtotal,
		Tax:                 tax,
		Tip:                 tip,
		Total:               subtotal.Add(tax).Add(tip),
		CashDrawerSessionID: session.ID,
		IdempotencyKey:      &key,
		Offline:             req.Offline,
		CapturedAt:          req.CapturedAt,
		LineItems:           lines,
	}
}

func (s *service) recordAudit(ctx context.Context, input Input, sale *models.Transaction) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		TenantID: input.TenantID,
		ActorID:  input.ActorID,
		Type:     enums.AuditSaleCompleted,
		EntityID: sale.ID,
		Payload: map[string]any{
			"total":          sale.Total.StringFixed(2),
			"method":         sale.PaymentMethod,
			"itemCount":      len(sale.LineItems),
			"offline":        sale.Offline,
			"capturedAt":     sale.CapturedAt,
			"idempotencyKey": input.Request.IdempotencyKey,
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Error(ctx, "failed to record sale audit event", err)
	}
}
