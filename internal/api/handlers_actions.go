// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/validation"
)

// AnalyticsActions handles POST /api/v1/analytics/actions: the operator
// surface for counter repair and abuse review.
func (h *Handler) AnalyticsActions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ActionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationFailed(verr.Error(), verr.Details())
		return
	}

	switch req.Action {
	case ActionResetViewCount:
		h.resetViewCount(rw, r, &req)
	case ActionBulkFixViewCounts:
		h.bulkFixViewCounts(rw, r)
	case ActionGetSuspiciousActivity:
		h.getSuspiciousActivity(rw, r, &req)
	default:
		// Unreachable past validation; kept for defense against new actions
		rw.BadRequest("unknown action")
	}
}

func (h *Handler) resetViewCount(rw *ResponseWriter, r *http.Request, req *ActionRequest) {
	if req.ContentID == "" {
		rw.ValidationFailed("content_id is required for reset_view_count", nil)
		return
	}

	// Absent new_count resets to zero; negative values clamp to zero.
	newCount := int64(0)
	if req.NewCount != nil && *req.NewCount > 0 {
		newCount = *req.NewCount
	}

	err := h.db.ResetViewCount(r.Context(), req.ContentID, newCount)
	if errors.Is(err, database.ErrContentNotFound) {
		rw.NotFound("content not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("content_id", req.ContentID).Msg("Counter reset failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to reset view count")
		return
	}

	rw.Success(map[string]interface{}{
		"action":     ActionResetViewCount,
		"content_id": req.ContentID,
		"new_count":  newCount,
	})
}

func (h *Handler) bulkFixViewCounts(rw *ResponseWriter, r *http.Request) {
	fixed, err := h.db.BulkFixViewCounts(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Bulk counter fix failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeDatabaseError,
			"bulk fix failed partway", map[string]interface{}{"fixed": fixed})
		return
	}

	rw.Success(map[string]interface{}{
		"action": ActionBulkFixViewCounts,
		"fixed":  fixed,
	})
}

// actionWindows maps the window enum to durations.
var actionWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

func (h *Handler) getSuspiciousActivity(rw *ResponseWriter, r *http.Request, req *ActionRequest) {
	window, ok := actionWindows[req.Window]
	if !ok {
		window = actionWindows["24h"]
	}

	findings, err := h.detector.Scan(r.Context(), req.ContentID, window)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Suspicious activity scan failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "scan failed")
		return
	}

	if h.notifier != nil && h.notifier.Enabled() {
		if nerr := h.notifier.Notify(r.Context(), findings); nerr != nil {
			// Delivery problems never fail the scan
			logging.Ctx(r.Context()).Warn().Err(nerr).Msg("Webhook notification failed")
		}
	}

	rw.Success(map[string]interface{}{
		"action":   ActionGetSuspiciousActivity,
		"window":   window.String(),
		"findings": findings,
	})
}
