package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/middleware"
	"github.com/angelmondragon/franchisepos-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// PrivatePing echoes the resolved principal so a terminal can verify its token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"scope": "private", "status": "ok"}
		if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
			payload["tenantId"] = p.TenantID.String()
			payload["userId"] = p.UserID.String()
			payload["role"] = string(p.Role)
			payload["canRefund"] = p.MayRefund()
			if p.LocationID != nil {
				payload["locationId"] = p.LocationID.String()
			}
		}
		responses.WriteSuccess(w, payload)
	}
}
