package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/franchisepos-backend/internal/displaysync"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type stubSearch struct {
	query string
	limit int
}

func (s *stubSearch) Search(_ context.Context, _ uuid.UUID, query string, limit int) ([]types.ProductSummary, error) {
	s.query, s.limit = query, limit
	return []types.ProductSummary{{ID: uuid.New(), Name: "Shampoo", SKU: "SH-1"}}, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestProductSearch(t *testing.T) {
	logg := testLogger()
	p := testPrincipal()
	svc := &stubSearch{}

	rec := serve(t, ProductSearch(svc, logg), http.MethodGet, "/api/v1/products/search?q=sha&limit=5", "", &p, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.query != "sha" || svc.limit != 5 {
		t.Fatalf("unexpected forwarding %q %d", svc.query, svc.limit)
	}

	rec = serve(t, ProductSearch(svc, logg), http.MethodGet, "/api/v1/products/search?q=sha&limit=x", "", &p, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non numeric limit, got %d", rec.Code)
	}
}

func TestDisplaySyncRoundTrip(t *testing.T) {
	logg := testLogger()
	p := testPrincipal()
	svc, err := displaysync.NewService(displaysync.NewMemoryStore(), config.DisplaySyncConfig{
		MaxWait:         time.Second,
		WritesPerSecond: 100,
		WriteBurst:      100,
	}, nil, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	t.Run("address required", func(t *testing.T) {
		rec := serve(t, DisplaySyncGet(svc, logg), http.MethodGet, "/api/v1/display-sync", "", &p, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("write then read", func(t *testing.T) {
		body := `{"stationId":"front-1","cart":{"status":"ACTIVE","items":[{"name":"Cut","quantity":1,"price":"30","total":"30"}],"subtotal":"30","tax":"2.4","total":"32.4","showTipPrompt":false,"tipSelected":false}}`
		rec := serve(t, DisplaySyncWrite(svc, logg), http.MethodPost, "/api/v1/display-sync", body, &p, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var written types.DisplaySnapshot
		decodeData(t, rec, &written)

		rec = serve(t, DisplaySyncGet(svc, logg), http.MethodGet, "/api/v1/display-sync?stationId=front-1", "", &p, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Fatalf("display reads must not be cached")
		}
		var snap types.DisplaySnapshot
		decodeData(t, rec, &snap)
		if snap.Version != written.Version || snap.State.Status != enums.DisplayStatusActive || len(snap.State.Items) != 1 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("other tenant sees idle", func(t *testing.T) {
		other := testPrincipal()
		rec := serve(t, DisplaySyncGet(svc, logg), http.MethodGet, "/api/v1/display-sync?stationId=front-1", "", &other, nil)
		var snap types.DisplaySnapshot
		decodeData(t, rec, &snap)
		if snap.State.Status != enums.DisplayStatusIdle || snap.Version != 0 {
			t.Fatalf("expected idle channel, got %+v", snap)
		}
	})

	t.Run("wait out of range", func(t *testing.T) {
		rec := serve(t, DisplaySyncGet(svc, logg), http.MethodGet, "/api/v1/display-sync?stationId=front-1&waitMs=999999", "", &p, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := testLogger()

	rec := serve(t, HealthReady(cfg, logg, Dependency{Name: "db", Pinger: stubPinger{}}), http.MethodGet, "/health/ready", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(t, HealthReady(cfg, logg,
		Dependency{Name: "db", Pinger: stubPinger{}},
		Dependency{Name: "redis", Pinger: stubPinger{err: errors.New("dial tcp: refused")}},
	), http.MethodGet, "/health/ready", "", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != "DEPENDENCY_ERROR" {
		t.Fatalf("unexpected code %s", got.Code)
	}
}
