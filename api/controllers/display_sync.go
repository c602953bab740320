package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/franchisepos-backend/api/responses"
	"github.com/angelmondragon/franchisepos-backend/api/validators"
	"github.com/angelmondragon/franchisepos-backend/internal/displaysync"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

// maxWaitMS caps the waitMs parameter before the service applies its own limit.
const maxWaitMS = 60000

// DisplaySyncGet reads a display channel. With since and waitMs it long-polls
// until the version moves past since or the wait elapses.
func DisplaySyncGet(svc displaysync.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "display sync")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		q := r.URL.Query()
		addr := displaysync.Address{
			StationID:  strings.TrimSpace(q.Get("stationId")),
			LocationID: strings.TrimSpace(q.Get("locationId")),
		}
		since, err := validators.ParseQueryInt64(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		waitMS, err := validators.ParseQueryInt(r, "waitMs", 0, 0, maxWaitMS)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Get(r.Context(), principal.TenantID, addr, since, time.Duration(waitMS)*time.Millisecond)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, snapshot)
	}
}

// DisplaySyncWrite overwrites a display channel. Last write wins.
func DisplaySyncWrite(svc displaysync.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "display sync")
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var payload types.DisplayWriteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addr := displaysync.Address{
			StationID:  strings.TrimSpace(payload.StationID),
			LocationID: strings.TrimSpace(payload.LocationID),
		}
		snapshot, err := svc.Write(r.Context(), principal.TenantID, addr, payload.Cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
