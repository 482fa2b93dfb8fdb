// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"net/http"
	"time"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/detection"
	"github.com/husarkar-hub/viewguard/internal/tracking"
)

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	cfg      *config.Config
	db       *database.DB
	tracker  *tracking.Tracker
	detector *detection.Detector
	notifier *detection.WebhookNotifier

	startTime time.Time
}

// NewHandler creates the API handler set.
func NewHandler(cfg *config.Config, db *database.DB, tracker *tracking.Tracker,
	detector *detection.Detector, notifier *detection.WebhookNotifier) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		tracker:   tracker,
		detector:  detector,
		notifier:  notifier,
		startTime: time.Now(),
	}
}

// Health reports service status and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := "healthy"
	dbStatus := "up"
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "down"
	}

	rw.Success(map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthLive is the liveness probe: the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: the database answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.db.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("database not reachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}
