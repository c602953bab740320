package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

// TenantRateLimit throttles authenticated traffic with one token bucket per tenant.
func TenantRateLimit(cfg config.RateLimitConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	limiters := &tenantLimiters{
		limit:    rate.Limit(cfg.TenantRequestsPerSecond),
		burst:    cfg.TenantBurst,
		byTenant: map[string]*rate.Limiter{},
	}
	return func(next http.Handler) http.Handler {
		if cfg.TenantRequestsPerSecond <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := TenantIDFromContext(r.Context())
			if tenant == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiters.get(tenant).Allow() {
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{
						"limit_rps": cfg.TenantRequestsPerSecond,
						"burst":     cfg.TenantBurst,
					}), "tenant.rate_limit.blocked")
				}
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tenantLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	byTenant map[string]*rate.Limiter
}

func (t *tenantLimiters) get(tenant string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.byTenant[tenant]
	if !ok {
		burst := t.burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(t.limit, burst)
		t.byTenant[tenant] = l
	}
	return l
}
