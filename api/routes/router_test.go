package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/franchisepos-backend/internal/sales"
	pkgauth "github.com/angelmondragon/franchisepos-backend/pkg/auth"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type countingSales struct {
	calls int
}

func (s *countingSales) Commit(_ context.Context, in sales.Input) (*sales.Result, error) {
	s.calls++
	return &sales.Result{Transaction: &models.Transaction{
		ID:            uuid.New(),
		TenantID:      in.TenantID,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: in.Request.PaymentMethod,
		Total:         decimal.NewFromInt(10),
	}}, nil
}

type stubSearch struct{}

func (stubSearch) Search(context.Context, uuid.UUID, string, int) ([]types.ProductSummary, error) {
	return []types.ProductSummary{}, nil
}

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: []string{"http://display.local"}},
		JWT:       config.JWTConfig{Secret: "router-secret", Issuer: "franchisepos", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{TenantRequestsPerSecond: 1000, TenantBurst: 1000},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.MemberRole, canRefund bool) string {
	t.Helper()
	loc := uuid.New()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:     uuid.New(),
		TenantID:   uuid.New(),
		LocationID: &loc,
		Role:       role,
		CanRefund:  canRefund,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func do(router http.Handler, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterWiring(t *testing.T) {
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})
	salesSvc := &countingSales{}
	router := NewRouter(cfg, logg, Infra{
		DB:          stubPinger{},
		Metrics:     prometheus.NewRegistry(),
		Idempotency: &memoryIdempotency{data: map[string]string{}},
	}, Services{
		Sales:    salesSvc,
		Products: stubSearch{},
	})

	staff := bearer(t, cfg, enums.MemberRoleStaff, false)

	t.Run("health", func(t *testing.T) {
		if rec := do(router, http.MethodGet, "/health/live", "", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("live: %d", rec.Code)
		}
		if rec := do(router, http.MethodGet, "/health/ready", "", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("ready: %d", rec.Code)
		}
		if rec := do(router, http.MethodGet, "/metrics", "", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("metrics: %d", rec.Code)
		}
	})

	t.Run("auth required", func(t *testing.T) {
		if rec := do(router, http.MethodGet, "/api/v1/ping", "", "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if rec := do(router, http.MethodGet, "/api/v1/ping", staff, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("refund needs permission", func(t *testing.T) {
		body := `{"originalTransactionId":"` + uuid.NewString() + `","refundType":"FULL","refundMethod":"CASH"}`
		if rec := do(router, http.MethodPost, "/api/v1/refunds", staff, body, nil); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for staff without grant, got %d", rec.Code)
		}
		owner := bearer(t, cfg, enums.MemberRoleOwner, false)
		// owner passes the gate and reaches the unwired engine
		if rec := do(router, http.MethodPost, "/api/v1/refunds", owner, body, nil); rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected owner override to pass permission, got %d", rec.Code)
		}
	})

	t.Run("audit needs manager", func(t *testing.T) {
		if rec := do(router, http.MethodGet, "/api/v1/audit", staff, "", nil); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("search", func(t *testing.T) {
		if rec := do(router, http.MethodGet, "/api/v1/products/search?q=ab", staff, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("sale replay served from idempotency cache", func(t *testing.T) {
		body := `{"idempotencyKey":"sale-1","paymentMethod":"CASH","items":[{"type":"PRODUCT","quantity":1,"price":"10"}]}`
		headers := map[string]string{"Idempotency-Key": "sale-1"}
		first := do(router, http.MethodPost, "/api/v1/sales", staff, body, headers)
		if first.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
		}
		second := do(router, http.MethodPost, "/api/v1/sales", staff, body, headers)
		if second.Code != http.StatusCreated {
			t.Fatalf("expected cached 201, got %d", second.Code)
		}
		if salesSvc.calls != 1 {
			t.Fatalf("expected one commit, got %d", salesSvc.calls)
		}
		if first.Body.String() != second.Body.String() {
			t.Fatalf("replayed body differs")
		}
	})
}
