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
	"github.com/husarkar-hub/viewguard/internal/models"
	"github.com/husarkar-hub/viewguard/internal/validation"
)

// UpsertContent handles PUT /api/v1/contents/{contentID}: the seam the
// host CMS uses to sync content existence and publish state.
func (h *Handler) UpsertContent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	contentID := chi.URLParam(r, "contentID")
	if contentID == "" || len(contentID) > 512 {
		rw.ValidationFailed("content ID must be 1-512 characters", nil)
		return
	}

	var req UpsertContentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationFailed(verr.Error(), verr.Details())
		return
	}

	content := &models.Content{
		ID:        contentID,
		Title:     req.Title,
		Published: *req.Published,
	}
	if err := h.db.UpsertContent(r.Context(), content); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("content_id", contentID).Msg("Content upsert failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to upsert content")
		return
	}

	rw.Success(content)
}

// GetContent handles GET /api/v1/contents/{contentID}.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	contentID := chi.URLParam(r, "contentID")
	content, err := h.db.GetContent(r.Context(), contentID)
	if errors.Is(err, database.ErrContentNotFound) {
		rw.NotFound("content not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("content_id", contentID).Msg("Content lookup failed")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "failed to load content")
		return
	}

	rw.Success(content)
}
