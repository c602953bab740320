package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/ledger"
	"github.com/angelmondragon/franchisepos-backend/internal/refunds"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxReasonLength   = 500
)

// CreateRefund runs the refund engine. Permission is enforced by the route.
func CreateRefund(engine refunds.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			serviceUnavailable(w, r, logg, "refund engine")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		// Field checks run in the engine after the shift guard.
		var payload types.RefundRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.IdempotencyKey == "" {
			payload.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))
		}
		payload.Reason = validators.CleanReason(payload.Reason, maxReasonLength)

		ctx := logg.WithFields(r.Context(), map[string]any{
			"original_transaction_id": payload.OriginalTransactionID.String(),
			"refund_type":             string(payload.RefundType),
		})
		result, err := engine.Refund(ctx, refunds.Input{
			TenantID: principal.TenantID,
			ActorID:  principal.UserID,
			Request:  payload,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger.ToView(result.Transaction))
	}
}
