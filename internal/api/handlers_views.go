// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/models"
	"github.com/husarkar-hub/viewguard/internal/tracking"
	"github.com/husarkar-hub/viewguard/internal/validation"
)

// TrackView handles POST /api/v1/views/{contentID}: one view attempt runs
// the full admission pipeline and answers with the new count, a rejection
// reason, or an error from the taxonomy.
func (h *Handler) TrackView(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	contentID := chi.URLParam(r, "contentID")
	if contentID == "" {
		rw.ValidationFailed("content ID is required", nil)
		return
	}
	if len(contentID) > 512 {
		rw.ValidationFailed("content ID exceeds 512 characters", nil)
		return
	}

	var body TrackViewRequest
	if hasBody(r) {
		if err := decodeJSONBody(r, &body); err != nil {
			rw.BadRequest(err.Error())
			return
		}
		if verr := validation.ValidateStruct(&body); verr != nil {
			rw.ValidationFailed(verr.Error(), verr.Details())
			return
		}
	}

	referrer := body.Referrer
	if referrer == "" {
		referrer = r.Referer()
	}

	metadata := ""
	if len(body.Metadata) > 0 {
		raw, err := json.Marshal(body.Metadata)
		if err != nil {
			rw.BadRequest("metadata is not serializable")
			return
		}
		metadata = string(raw)
	}

	result, err := h.tracker.Track(r.Context(), tracking.Request{
		ContentID: contentID,
		Origin:    clientOrigin(r),
		UserAgent: r.UserAgent(),
		Referrer:  referrer,
		Metadata:  metadata,
	})
	switch {
	case errors.Is(err, tracking.ErrMissingContentID):
		rw.ValidationFailed("content ID is required", nil)
		return
	case errors.Is(err, database.ErrContentNotFound):
		rw.NotFound("content not found or not publishable")
		return
	case errors.Is(err, database.ErrCounterOverflow):
		rw.Error(http.StatusInternalServerError, ErrCodeCounterOverflow,
			"view counter is at its safety ceiling; an operator reset is required")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("content_id", contentID).Msg("View tracking failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to process view")
		return
	}

	if !result.Admitted {
		rw.TooManyRequestsWithReason("view rejected", result.Reason)
		return
	}

	rw.Success(map[string]interface{}{
		"content_id":      contentID,
		"view_count":      result.NewCount,
		"formatted_views": models.FormatViewCount(result.NewCount),
		// False when the increment committed but its audit row was lost
		"ledger_recorded": result.LedgerErr == nil,
	})
}

// clientOrigin extracts the origin address from the request. RealIP
// middleware has already resolved X-Forwarded-For into RemoteAddr.
func clientOrigin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
