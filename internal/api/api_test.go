// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package api

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/database"
	"github.com/husarkar-hub/viewguard/internal/detection"
	"github.com/husarkar-hub/viewguard/internal/tracking"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"

// envelope mirrors APIResponse for decoding in tests.
type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *APIError              `json:"error"`
}

// setupTestAPI assembles the full router over an in-memory database.
// mutate adjusts config before wiring.
func setupTestAPI(t *testing.T, mutate func(*config.Config)) *chi.Mux {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8484},
		Tracking: config.TrackingConfig{
			RateLimitThreshold:  10,
			RateLimitWindow:     time.Hour,
			CooldownWindow:      5 * time.Minute,
			MaxSafeCount:        math.MaxInt64,
			BotDetectionEnabled: true,
			RateLimitingEnabled: true,
		},
		Analytics: config.AnalyticsConfig{TopReferrers: 10, TopContent: 10},
		Security:  config.SecurityConfig{CORSOrigins: []string{"*"}, RateLimitDisabled: true},
	}
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB"}, cfg.Tracking.MaxSafeCount)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tracker := tracking.NewTracker(db, &cfg.Tracking)
	detector := detection.NewDetector(db, tracker.Classifier(), cfg.Tracking.RateLimitThreshold)
	notifier := detection.NewWebhookNotifier(&cfg.Detection)
	handler := NewHandler(cfg, db, tracker, detector, notifier)
	return NewRouter(cfg, handler)
}

// doRequest executes one request against the router and decodes the
// envelope.
func doRequest(t *testing.T, router *chi.Mux, method, path string, body interface{}, ua, remoteAddr string) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	env := &envelope{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), env); err != nil {
			t.Fatalf("response is not an envelope: %v: %s", err, rec.Body.String())
		}
	}
	return rec, env
}

// registerContent creates a published content row through the API.
func registerContent(t *testing.T, router *chi.Mux, id string) {
	t.Helper()
	published := true
	rec, _ := doRequest(t, router, http.MethodPut, "/api/v1/contents/"+id,
		UpsertContentRequest{Title: "Test " + id, Published: &published}, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("content registration returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTrackViewEndpoint(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusOK {
		t.Fatalf("TrackView returned %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Success || env.Data["view_count"].(float64) != 1 {
		t.Errorf("envelope = %+v, want success with view_count 1", env)
	}
	if env.Data["ledger_recorded"] != true {
		t.Errorf("ledger_recorded = %v, want true", env.Data["ledger_recorded"])
	}
}

func TestTrackViewUnknownContent(t *testing.T) {
	router := setupTestAPI(t, nil)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/views/ghost", nil, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("TrackView returned %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestTrackViewBotRejected(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, "Googlebot/2.1", "203.0.113.9:41000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("bot view returned %d, want 429", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Fatalf("error = %+v, want TOO_MANY_REQUESTS", env.Error)
	}
	details, ok := env.Error.Details.(map[string]interface{})
	if !ok || details["reason"] != "bot_detected" {
		t.Errorf("details = %+v, want reason bot_detected", env.Error.Details)
	}
}

func TestTrackViewCooldownRejected(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusOK {
		t.Fatalf("first view returned %d", rec.Code)
	}

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second view returned %d, want 429", rec.Code)
	}
	details, _ := env.Error.Details.(map[string]interface{})
	if details["reason"] != "cooldown_active" {
		t.Errorf("details = %+v, want reason cooldown_active", env.Error.Details)
	}
}

func TestTrackViewWithBody(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	body := TrackViewRequest{
		Referrer: "https://news.example.com",
		Metadata: map[string]interface{}{"ab_test": "variant-b"},
	}
	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", body, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusOK {
		t.Fatalf("TrackView with body returned %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Errorf("envelope = %+v, want success", env)
	}
}

func TestContentAnalyticsEndpoint(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/analytics/alpha", nil, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ContentAnalytics returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["content_id"] != "alpha" || env.Data["total_views"].(float64) != 1 {
		t.Errorf("stats = %+v, want alpha with 1 view", env.Data)
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/analytics/ghost", nil, browserUA, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("analytics for unknown content returned %d, want 404", rec.Code)
	}
}

func TestSystemAnalyticsEndpoint(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")
	doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/analytics", nil, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("SystemAnalytics returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["total_views"].(float64) != 1 || env.Data["tracked_content"].(float64) != 1 {
		t.Errorf("system stats = %+v, want 1 view on 1 content", env.Data)
	}
}

func TestActionsResetViewCount(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	newCount := int64(5)
	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/analytics/actions",
		ActionRequest{Action: ActionResetViewCount, ContentID: "alpha", NewCount: &newCount}, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["new_count"].(float64) != 5 {
		t.Errorf("reset data = %+v, want new_count 5", env.Data)
	}

	// Reset then one admitted view yields 6
	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/views/alpha", nil, browserUA, "203.0.113.9:41000")
	if rec.Code != http.StatusOK {
		t.Fatalf("view after reset returned %d", rec.Code)
	}
	if env.Data["view_count"].(float64) != 6 {
		t.Errorf("view_count = %v after reset(5)+view, want 6", env.Data["view_count"])
	}

	// Negative new_count clamps to zero
	negative := int64(-10)
	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/analytics/actions",
		ActionRequest{Action: ActionResetViewCount, ContentID: "alpha", NewCount: &negative}, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("negative reset returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["new_count"].(float64) != 0 {
		t.Errorf("negative reset data = %+v, want new_count 0", env.Data)
	}
}

func TestActionsBulkFixAndScan(t *testing.T) {
	router := setupTestAPI(t, nil)
	registerContent(t, router, "alpha")

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/analytics/actions",
		ActionRequest{Action: ActionBulkFixViewCounts}, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk fix returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["fixed"].(float64) != 0 {
		t.Errorf("bulk fix data = %+v, want fixed 0 on a clean store", env.Data)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/analytics/actions",
		ActionRequest{Action: ActionGetSuspiciousActivity, Window: "1h"}, browserUA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("scan returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.Data["window"] != "1h0m0s" {
		t.Errorf("scan window = %v, want 1h0m0s", env.Data["window"])
	}
}

func TestActionsValidation(t *testing.T) {
	router := setupTestAPI(t, nil)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/analytics/actions",
		ActionRequest{Action: "drop_all_tables"}, browserUA, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid action returned %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v, want VALIDATION_FAILED", env.Error)
	}

	// Malformed JSON
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/actions", bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON returned %d, want 400", rec2.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := setupTestAPI(t, nil)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready", "/health"} {
		rec, env := doRequest(t, router, http.MethodGet, path, nil, browserUA, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d, want 200", path, rec.Code)
		}
		if !env.Success {
			t.Errorf("%s envelope = %+v, want success", path, env)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics returned %d, want 200", rec.Code)
	}
}
