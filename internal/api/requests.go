// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// maxBodyBytes caps request bodies. View bodies are a referrer plus a
// small metadata bag; anything near this limit is not a view.
const maxBodyBytes = 64 * 1024

// Admin actions accepted by POST /api/v1/analytics/actions.
const (
	ActionResetViewCount        = "reset_view_count"
	ActionBulkFixViewCounts     = "bulk_fix_view_counts"
	ActionGetSuspiciousActivity = "get_suspicious_activity"
)

// TrackViewRequest is the optional body of POST /views/{contentID}.
type TrackViewRequest struct {
	Referrer string                 `json:"referrer" validate:"omitempty,max=2048"`
	Metadata map[string]interface{} `json:"metadata" validate:"omitempty,max=32"`
}

// ActionRequest is the body of POST /analytics/actions.
type ActionRequest struct {
	Action    string `json:"action" validate:"required,oneof=reset_view_count bulk_fix_view_counts get_suspicious_activity"`
	ContentID string `json:"content_id" validate:"omitempty,max=512"`
	NewCount  *int64 `json:"new_count" validate:"omitempty"`
	Window    string `json:"window" validate:"omitempty,oneof=1h 24h 7d"`
}

// UpsertContentRequest is the body of PUT /contents/{contentID}.
type UpsertContentRequest struct {
	Title     string `json:"title" validate:"omitempty,max=1024"`
	Published *bool  `json:"published" validate:"required"`
}

// decodeJSONBody decodes a request body into dst with a size cap. An empty
// body is an error; callers that allow one check ContentLength first.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _ = body.Close() }()

	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// hasBody reports whether the request carries a body worth decoding.
func hasBody(r *http.Request) bool {
	return r.Body != nil && r.ContentLength != 0
}
