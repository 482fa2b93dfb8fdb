// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/logging"
)

// ContentAnalytics handles GET /api/v1/analytics/{contentID}.
func (h *Handler) ContentAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	contentID := chi.URLParam(r, "contentID")
	if contentID == "" {
		rw.ValidationFailed("content ID is required", nil)
		return
	}

	stats, err := h.db.GetContentViewStats(r.Context(), contentID, h.cfg.Analytics.TopReferrers)
	if errors.Is(err, database.ErrContentNotFound) {
		rw.NotFound("content not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("content_id", contentID).Msg("Content analytics failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load analytics")
		return
	}

	rw.Success(stats)
}

// SystemAnalytics handles GET /api/v1/analytics.
func (h *Handler) SystemAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.db.GetSystemViewStats(r.Context(), h.cfg.Analytics.TopContent)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("System analytics failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load analytics")
		return
	}

	rw.Success(stats)
}
