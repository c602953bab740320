package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	pkgAuth "github.com/angelmondragon/franchisepos-backend/pkg/auth"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the principal.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:     claims.UserID,
				TenantID:   claims.TenantID,
				LocationID: claims.LocationID,
				Role:       claims.Role,
				CanRefund:  claims.CanRefund,
			})
			if logg != nil {
				ctx = logg.WithTenantID(ctx, claims.TenantID.String())
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if device := strings.TrimSpace(r.Header.Get("X-Device-ID")); device != "" {
					ctx = logg.WithField(ctx, "device_id", device)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
