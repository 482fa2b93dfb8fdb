// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package main is the entry point for the Viewguard server.
//
// Viewguard is a view tracking integrity service: it counts content views
// while filtering out bots, rate-limit abusers, and cooldown violations,
// keeps an append-only ledger of every admission decision, and serves
// per-content and system-wide analytics over a REST API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables layered over an optional YAML file (Koanf v2)
//  2. Database: DuckDB with contents, view_counters, and view_events tables
//  3. Tracking pipeline: bot classifier, abuse guard, and atomic counter
//  4. Detection: suspicious activity scanner with optional webhook notifier
//  5. HTTP Server: REST API behind a chi router with Prometheus metrics
//
// All long-running work (HTTP server, ledger retention janitor) runs under
// a suture supervision tree so a crashed component restarts with backoff
// instead of taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HTTP_PORT, DUCKDB_PATH, RATE_LIMIT_THRESHOLD, ...)
//   - Config file (config.yaml, path overridable via CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Checkpoints and closes the DuckDB database
//
// # Example Usage
//
//	export DUCKDB_PATH=/data/viewguard.duckdb
//	export RATE_LIMIT_THRESHOLD=10
//	export COOLDOWN_WINDOW=5m
//	./viewguard
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/husarkar-hub/viewguard/internal/api"
	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/detection"
	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/supervisor"
	"github.com/husarkar-hub/viewguard/internal/supervisor/services"
	"github.com/husarkar-hub/viewguard/internal/tracking"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("rate_limit_threshold", cfg.Tracking.RateLimitThreshold).
		Dur("cooldown_window", cfg.Tracking.CooldownWindow).
		Bool("bot_detection", cfg.Tracking.BotDetectionEnabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database, cfg.Tracking.MaxSafeCount)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	if !cfg.Tracking.BotDetectionEnabled {
		logging.Warn().Msg("Bot detection is DISABLED (ENABLE_BOT_DETECTION=false)")
	}
	if !cfg.Tracking.RateLimitingEnabled {
		logging.Warn().Msg("Admission rate limiting is DISABLED (ENABLE_RATE_LIMITING=false)")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("HTTP rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	tracker := tracking.NewTracker(db, &cfg.Tracking)
	detector := detection.NewDetector(db, tracker.Classifier(), cfg.Tracking.RateLimitThreshold)

	notifier := detection.NewWebhookNotifier(&cfg.Detection)
	if notifier.Enabled() {
		logging.Info().Str("url", cfg.Detection.WebhookURL).Msg("Detection webhook notifier enabled")
	}

	handler := api.NewHandler(cfg, db, tracker, detector, notifier)
	router := api.NewRouter(cfg, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The slog adapter bridges zerolog to slog for sutureslog
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	tree.AddMaintenanceService(services.NewRetentionService(db, cfg.Database.RetentionDays))
	if cfg.Database.RetentionDays > 0 {
		logging.Info().Int("retention_days", cfg.Database.RetentionDays).Msg("Ledger retention janitor added")
	} else {
		logging.Info().Msg("Ledger retention disabled (EVENT_RETENTION_DAYS=0)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Viewguard stopped gracefully")
}
