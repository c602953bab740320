package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	product "github.com/angelmondragon/franchisepos-backend/internal/products"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

// ProductSearch answers the register's universal search box. Zero means the
// configured default limit; the service clamps anything above its maximum.
func ProductSearch(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product service")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		results, err := svc.Search(r.Context(), principal.TenantID, r.URL.Query().Get("q"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}
