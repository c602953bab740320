package shifts

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
	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

const maxReasonLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OpenInput starts a shift on a location's drawer.
type OpenInput struct {
	TenantID     uuid.UUID
	LocationID   uuid.UUID
	EmployeeID   uuid.UUID
	OpeningFloat decimal.Decimal
}

// CloseInput ends a shift.
type CloseInput struct {
	TenantID     uuid.UUID
	SessionID    uuid.UUID
	EmployeeID   uuid.UUID
	ClosingCount *decimal.Decimal
}

// DrawerInput describes a no-sale open or a recount on the current shift.
type DrawerInput struct {
	TenantID      uuid.UUID
	EmployeeID    uuid.UUID
	SessionID     *uuid.UUID
	CountedAmount *decimal.Decimal
	Reason        string
}

// Service manages shift lifecycle and drawer events.
type Service interface {
	OpenShift(ctx context.Context, input OpenInput) (*models.CashDrawerSession, error)
	CloseShift(ctx context.Context, input CloseInput) (*models.CashDrawerSession, error)
	CurrentShift(ctx context.Context, tenantID, locationID uuid.UUID) (*models.CashDrawerSession, error)
	NoSale(ctx context.Context, input DrawerInput) (*models.DrawerEvent, error)
	Recount(ctx context.Context, input DrawerInput) (*models.DrawerEvent, error)
}

type service struct {
	repo  Repository
	guard Guard
	tx    txRunner
	audit audit.Recorder
	logg  *logger.Logger
	now   func() time.Time
}

// NewService wires the shift service. The audit recorder is optional.
func NewService(repo Repository, guard Guard, tx txRunner, recorder audit.Recorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("session guard required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  repo,
		guard: guard,
		tx:    tx,
		audit: recorder,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) OpenShift(ctx context.Context, input OpenInput) (*models.CashDrawerSession, error) {
	if input.TenantID == uuid.Nil || input.LocationID == uuid.Nil || input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant, location and employee are required")
	}
	if input.OpeningFloat.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opening float cannot be negative")
	}

	var session *models.CashDrawerSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOpenByLocation(ctx, input.TenantID, input.LocationID)
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a shift is already open for this location").
				WithDetails(map[string]any{"cashDrawerSessionId": existing.ID.String()})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open shift")
		}

		session = &models.CashDrawerSession{
			TenantID:     input.TenantID,
			LocationID:   input.LocationID,
			OpenedBy:     input.EmployeeID,
			OpeningFloat: input.OpeningFloat.Round(2),
			StartTime:    s.now(),
		}
		if err := repo.CreateSession(ctx, session); err != nil {
			if db.IsUniqueViolation(err, openSessionConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a shift is already open for this location")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cash_drawer_session_id": session.ID.String(),
		"location_id":            session.LocationID.String(),
	}), "shift opened")
	s.record(ctx, audit.Entry{
		TenantID: session.TenantID,
		ActorID:  input.EmployeeID,
		Type:     enums.AuditShiftOpened,
		EntityID: session.ID,
		Payload: map[string]any{
			"locationId":   session.LocationID,
			"openingFloat": session.OpeningFloat,
		},
	})
	return session, nil
}

func (s *service) CloseShift(ctx context.Context, input CloseInput) (*models.CashDrawerSession, error) {
	if input.TenantID == uuid.Nil || input.SessionID == uuid.Nil || input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant, session and employee are required")
	}
	if input.ClosingCount != nil && input.ClosingCount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "closing count cannot be negative")
	}

	var session *models.CashDrawerSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindSession(ctx, input.SessionID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cash drawer session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shift")
		}
		if found.TenantID != input.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cash drawer session not found")
		}
		if !found.IsOpen() {
			return closed(found.ID)
		}

		end := s.now()
		closedBy := input.EmployeeID
		found.EndTime = &end
		found.ClosedBy = &closedBy
		if input.ClosingCount != nil {
			count := input.ClosingCount.Round(2)
			found.ClosingCount = &count
		}
		if err := repo.SaveSession(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close shift")
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "cash_drawer_session_id", session.ID.String()), "shift closed")
	payload := map[string]any{"locationId": session.LocationID}
	if session.ClosingCount != nil {
		payload["closingCount"] = *session.ClosingCount
	}
	s.record(ctx, audit.Entry{
		TenantID: session.TenantID,
		ActorID:  input.EmployeeID,
		Type:     enums.AuditShiftClosed,
		EntityID: session.ID,
		Payload:  payload,
	})
	return session, nil
}

func (s *service) CurrentShift(ctx context.Context, tenantID, locationID uuid.UUID) (*models.CashDrawerSession, error) {
	if tenantID == uuid.Nil || locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and location are required")
	}
	var session *models.CashDrawerSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindOpenByLocation(ctx, tenantID, locationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNoOpenShift, "no open shift for this location")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load open shift")
		}
		session = found
		return nil
	})
	return session, err
}

func (s *service) NoSale(ctx context.Context, input DrawerInput) (*models.DrawerEvent, error) {
	return s.drawerEvent(ctx, enums.DrawerEventNoSale, input, nil)
}

func (s *service) Recount(ctx context.Context, input DrawerInput) (*models.DrawerEvent, error) {
	return s.drawerEvent(ctx, enums.DrawerEventRecount, input, func() error {
		if input.CountedAmount == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "counted amount is required")
		}
		if input.CountedAmount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "counted amount cannot be negative")
		}
		return nil
	})
}

// drawerEvent checks the shift before the request body, so a closed shift is
// reported even when the rest of the request is also wrong.
func (s *service) drawerEvent(ctx context.Context, kind enums.DrawerEventType, input DrawerInput, check func() error) (*models.DrawerEvent, error) {
	if input.TenantID == uuid.Nil || input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and employee are required")
	}
	reason := strings.TrimSpace(input.Reason)

	var event *models.DrawerEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.guard.Require(ctx, tx, input.TenantID, input.SessionID)
		if err != nil {
			return err
		}
		if len(reason) > maxReasonLength {
			return pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
		}
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		event = &models.DrawerEvent{
			TenantID:            input.TenantID,
			CashDrawerSessionID: session.ID,
			EmployeeID:          input.EmployeeID,
			Type:                kind,
		}
		if input.CountedAmount != nil {
			amount := input.CountedAmount.Round(2)
			event.CountedAmount = &amount
		}
		if reason != "" {
			event.Reason = &reason
		}
		if err := s.repo.WithTx(tx).CreateDrawerEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record drawer event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditType := enums.AuditDrawerNoSale
	if kind == enums.DrawerEventRecount {
		auditType = enums.AuditDrawerRecount
	}
	payload := map[string]any{"cashDrawerSessionId": event.CashDrawerSessionID}
	if event.CountedAmount != nil {
		payload["countedAmount"] = *event.CountedAmount
	}
	if event.Reason != nil {
		payload["reason"] = *event.Reason
	}
	s.record(ctx, audit.Entry{
		TenantID: event.TenantID,
		ActorID:  event.EmployeeID,
		Type:     auditType,
		EntityID: event.ID,
		Payload:  payload,
	})
	return event, nil
}

// record writes the audit entry without affecting the committed operation.
func (s *service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "audit_type", entry.Type.String()), "failed to record audit event", err)
	}
}
