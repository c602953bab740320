package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/capabilities"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

func GetOfflineCapability(svc capabilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "capability service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), principal.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AcceptOfflineCapability records the offline card terms and risk acknowledgment.
func AcceptOfflineCapability(svc capabilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "capability service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var payload types.OfflineCapabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Accept(r.Context(), principal.TenantID, principal.UserID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
