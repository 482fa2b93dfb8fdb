// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/middleware"
)

// NewRouter assembles the chi router. Transport-level protections live
// here: CORS, real-IP resolution, panic recovery, and per-IP request
// limiting. The admission checks inside the tracking pipeline are separate
// and always run.
func NewRouter(cfg *config.Config, handler *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})
	// Compat aliases for probes configured without the API prefix
	r.Get("/health", handler.Health)
	r.Get("/health/live", handler.HealthLive)
	r.Get("/health/ready", handler.HealthReady)

	r.Route("/api/v1", func(r chi.Router) {
		if !cfg.Security.RateLimitDisabled && cfg.Security.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Post("/views/{contentID}", handler.TrackView)

		r.Get("/analytics", handler.SystemAnalytics)
		r.Get("/analytics/{contentID}", handler.ContentAnalytics)
		r.Post("/analytics/actions", handler.AnalyticsActions)

		r.Put("/contents/{contentID}", handler.UpsertContent)
		r.Get("/contents/{contentID}", handler.GetContent)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
