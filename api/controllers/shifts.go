package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/shifts"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type openShiftRequest struct {
	LocationID   *uuid.UUID      `json:"locationId,omitempty"`
	OpeningFloat decimal.Decimal `json:"openingFloat"`
}

type closeShiftRequest struct {
	ClosingCount *decimal.Decimal `json:"closingCount,omitempty"`
}

type drawerEventRequest struct {
	CashDrawerSessionID *uuid.UUID       `json:"cashDrawerSessionId,omitempty"`
	CountedAmount       *decimal.Decimal `json:"countedAmount,omitempty"`
	Reason              string           `json:"reason"`
}

// OpenShift starts a drawer session for the caller's location unless the body names one.
func OpenShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "shift service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var payload openShiftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID := payload.LocationID
		if locationID == nil {
			locationID = principal.LocationID
		}
		if locationID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "locationId is required"))
			return
		}

		session, err := svc.OpenShift(r.Context(), shifts.OpenInput{
			TenantID:     principal.TenantID,
			LocationID:   *locationID,
			EmployeeID:   principal.UserID,
			OpeningFloat: payload.OpeningFloat,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shiftView(session))
	}
}

func CloseShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "shift service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		sessionID, err := validators.ParseURLUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload closeShiftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CloseShift(r.Context(), shifts.CloseInput{
			TenantID:     principal.TenantID,
			SessionID:    sessionID,
			EmployeeID:   principal.UserID,
			ClosingCount: payload.ClosingCount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shiftView(session))
	}
}

func CurrentShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "shift service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		locationID, err := validators.ParseQueryUUID(r, "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if locationID == nil {
			locationID = principal.LocationID
		}
		if locationID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "locationId is required"))
			return
		}

		session, err := svc.CurrentShift(r.Context(), principal.TenantID, *locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shiftView(session))
	}
}

// DrawerNoSale records a drawer open without a sale on an open shift.
func DrawerNoSale(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return drawerEvent(logg, func(r *http.Request, input shifts.DrawerInput) (*models.DrawerEvent, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable")
		}
		return svc.NoSale(r.Context(), input)
	})
}

// DrawerRecount records a mid-shift cash count.
func DrawerRecount(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return drawerEvent(logg, func(r *http.Request, input shifts.DrawerInput) (*models.DrawerEvent, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable")
		}
		return svc.Recount(r.Context(), input)
	})
}

func drawerEvent(logg *logger.Logger, run func(*http.Request, shifts.DrawerInput) (*models.DrawerEvent, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var payload drawerEventRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := run(r, shifts.DrawerInput{
			TenantID:      principal.TenantID,
			EmployeeID:    principal.UserID,
			SessionID:     payload.CashDrawerSessionID,
			CountedAmount: payload.CountedAmount,
			Reason:        validators.CleanReason(payload.Reason, maxReasonLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, drawerEventView(event))
	}
}

func shiftView(s *models.CashDrawerSession) types.ShiftView {
	return types.ShiftView{
		ID:           s.ID,
		LocationID:   s.LocationID,
		OpenedBy:     s.OpenedBy,
		ClosedBy:     s.ClosedBy,
		OpeningFloat: s.OpeningFloat,
		ClosingCount: s.ClosingCount,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
	}
}

func drawerEventView(e *models.DrawerEvent) types.DrawerEventView {
	return types.DrawerEventView{
		ID:                  e.ID,
		CashDrawerSessionID: e.CashDrawerSessionID,
		EmployeeID:          e.EmployeeID,
		Type:                e.Type,
		CountedAmount:       e.CountedAmount,
		Reason:              e.Reason,
		CreatedAt:           e.CreatedAt,
	}
}
