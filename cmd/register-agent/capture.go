package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/offline"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type captureQueue interface {
	CaptureSale(ctx context.Context, req types.SaleRequest) (*offline.Receipt, error)
	CaptureRefund(ctx context.Context, req types.RefundRequest) (*offline.Receipt, error)
	Pending(ctx context.Context) ([]models.OfflineQueueItem, error)
	ReviewList(ctx context.Context) ([]models.OfflineQueueItem, error)
	Dismiss(ctx context.Context, seq int64) error
}

// captureRouter is the terminal UI's door into the offline queue. It answers
// 202 with the receipt; the agent loop replays the item once the API is reachable.
func captureRouter(q captureQueue, logg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post("/sales", captureSale(q, logg))
	r.Post("/refunds", captureRefund(q, logg))
	r.Get("/queue", listItems(q.Pending, logg))
	r.Get("/review", listItems(q.ReviewList, logg))
	r.Delete("/review/{seq}", dismissItem(q, logg))
	return r
}

func captureSale(q captureQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SaleRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := q.CaptureSale(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"seq":             receipt.Seq,
			"idempotency_key": receipt.IdempotencyKey,
		}), "sale captured offline")
		responses.WriteSuccessStatus(w, http.StatusAccepted, receipt)
	}
}

func captureRefund(q captureQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RefundRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = r.Header.Get("Idempotency-Key")
		}
		receipt, err := q.CaptureRefund(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"seq":             receipt.Seq,
			"idempotency_key": receipt.IdempotencyKey,
		}), "refund captured offline")
		responses.WriteSuccessStatus(w, http.StatusAccepted, receipt)
	}
}

func listItems(list func(context.Context) ([]models.OfflineQueueItem, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func dismissItem(q captureQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seq must be an integer"))
			return
		}
		if err := q.Dismiss(r.Context(), seq); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"dismissed": seq})
	}
}

// serveCapture runs the capture endpoint on addr until ctx is cancelled.
func serveCapture(ctx context.Context, addr string, handler http.Handler, logg *logger.Logger) error {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(logg.WithField(ctx, "addr", addr), "capture endpoint listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
