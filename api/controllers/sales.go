package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/ledger"
	"github.com/angelmondragon/franchisepos-backend/internal/sales"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

// CreateSale commits a completed sale. A replayed idempotency key answers 200
// with the original transaction; a fresh commit answers 201.
func CreateSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		// Field checks run in the service after the shift guard.
		var payload types.SaleRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.LocationID == nil {
			payload.LocationID = principal.LocationID
		}

		result, err := svc.Commit(r.Context(), sales.Input{
			TenantID: principal.TenantID,
			ActorID:  principal.UserID,
			Request:  payload,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, ledger.ToView(result.Transaction))
	}
}
