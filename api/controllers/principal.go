package controllers

import (
	"net/http"

	"github.com/angelmondragon/franchisepos-backend/api/middleware"
	"github.com/angelmondragon/franchisepos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

// requirePrincipal writes 401 and returns false when auth did not run.
func requirePrincipal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return middleware.Principal{}, false
	}
	return p, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}
