package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

func ListAuditEvents(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "audit service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.List(r.Context(), principal.TenantID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]types.AuditEventView, 0, len(events))
		for _, e := range events {
			out = append(out, types.AuditEventView{
				ID:          e.ID,
				Type:        e.Type,
				ActorID:     e.ActorID,
				EntityID:    e.EntityID,
				Payload:     e.Payload,
				CreatedAt:   e.CreatedAt,
				PublishedAt: e.PublishedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
