package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

type lineBody struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type cartBody struct {
	Kind  string     `json:"kind" validate:"required,oneof=PRODUCT SERVICE"`
	Items []lineBody `json:"items" validate:"required,min=1,dive"`
}

func TestDecodeJSONBody(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"PRODUCT","items":[{"quantity":1}],"extra":1}`))
		var body cartBody
		err := DecodeJSONBody(req, &body)
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var body cartBody
		if err := DecodeJSONBody(req, &body); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("nested field path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"GIFT","items":[{"quantity":0}]}`))
		var body cartBody
		err := DecodeJSONBody(req, &body)
		typed := pkgerrors.As(err)
		if typed == nil {
			t.Fatalf("expected typed error, got %v", err)
		}
		details, ok := typed.Details().(map[string]string)
		if !ok {
			t.Fatalf("unexpected details %#v", typed.Details())
		}
		if details["kind"] != "must be one of PRODUCT SERVICE" {
			t.Fatalf("unexpected kind message %q", details["kind"])
		}
		if details["items[0].quantity"] != "is required" {
			t.Fatalf("unexpected nested message %v", details)
		}
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"SERVICE","items":[{"quantity":2}]}`))
		var body cartBody
		if err := DecodeJSONBody(req, &body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body.Items[0].Quantity != 2 {
			t.Fatalf("unexpected body %+v", body)
		}
	})
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&since=7&loc=nope", nil)

	if _, err := ParseQueryInt(req, "limit", 10, 1, 100); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	if v, err := ParseQueryInt(req, "missing", 10, 1, 100); err != nil || v != 10 {
		t.Fatalf("expected default, got %d %v", v, err)
	}
	if v, err := ParseQueryInt64(req, "since"); err != nil || v != 7 {
		t.Fatalf("unexpected since %d %v", v, err)
	}
	if _, err := ParseQueryUUID(req, "loc"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected uuid error, got %v", err)
	}
	if id, err := ParseQueryUUID(req, "missing"); err != nil || id != nil {
		t.Fatalf("expected nil id, got %v %v", id, err)
	}
}

func TestParseURLUUID(t *testing.T) {
	id := uuid.New()
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	got, err := ParseURLUUID(req, "id")
	if err != nil || got != id {
		t.Fatalf("unexpected %s %v", got, err)
	}
	if _, err := ParseURLUUID(req, "other"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCleanReason(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "trims and cuts", in: "  damaged box  ", max: 7, want: "damaged"},
		{name: "collapses whitespace", in: "wrong\n\tsize   ordered", max: 0, want: "wrong size ordered"},
		{name: "drops control characters", in: "price\x00 match\x1b", max: 50, want: "price match"},
		{name: "keeps whole runes", in: "café crème", max: 4, want: "café"},
		{name: "no trailing space after cut", in: "too late", max: 4, want: "too"},
	}
	for _, tt := range tests {
		if got := CleanReason(tt.in, tt.max); got != tt.want {
			t.Fatalf("%s: expected %q got %q", tt.name, tt.want, got)
		}
	}
}
