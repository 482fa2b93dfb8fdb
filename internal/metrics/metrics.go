// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package metrics provides Prometheus instrumentation for:
// - View admission decisions (outcome and rejection reason)
// - Counter increments and ledger writes
// - DuckDB query performance
// - API endpoint latency and throughput
// - Detector findings and webhook delivery
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracking pipeline metrics
	ViewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_view_decisions_total",
			Help: "Total view attempts by outcome and rejection reason",
		},
		[]string{"outcome", "reason"},
	)

	PrefilterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_prefilter_rejections_total",
			Help: "Total view attempts rejected by the in-memory origin flood pre-filter",
		},
	)

	CounterIncrementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewguard_counter_increment_duration_seconds",
			Help:    "Duration of atomic view counter increments in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_ledger_write_failures_total",
			Help: "Total failed ledger appends (admitted increments whose audit row was lost)",
		},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_api_requests_total",
			Help: "Total API requests by method, endpoint, and status code",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewguard_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	DetectorFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_detector_findings_total",
			Help: "Total suspicious activity findings by kind and severity",
		},
		[]string{"kind", "severity"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_webhook_deliveries_total",
			Help: "Total detection webhook delivery attempts by result",
		},
		[]string{"result"}, // "ok", "error", "circuit_open"
	)

	// Retention metrics
	RetentionPurgedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_retention_purged_events_total",
			Help: "Total ledger events removed by the retention janitor",
		},
	)
)

// RecordDecision records one admission decision. Reason is empty for
// admitted events.
func RecordDecision(outcome, reason string) {
	ViewDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
