// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package middleware holds the HTTP middleware shared by all API routes.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/husarkar-hub/viewguard/internal/logging"
)

// RequestID attaches a unique ID to each request: reused from an upstream
// proxy's X-Request-ID when present, generated otherwise. The ID travels in
// the response header and the request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
