// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package config defines the Viewguard configuration model and loads it via
// Koanf v2 with layered sources (defaults, optional YAML file, environment).
//
// All tracking thresholds (rate window, cooldown, counter ceiling, bot
// patterns) live here as plain values and are handed to components at
// construction; nothing reads mutable global state after startup.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Viewguard server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Detection DetectionConfig `koanf:"detection"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for an ephemeral store.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB's memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`

	// RetentionDays is how long ledger rows are kept before the retention
	// janitor purges them. 0 keeps events forever.
	RetentionDays int `koanf:"retention_days"`
}

// TrackingConfig holds admission-pipeline settings: the bot classifier,
// the abuse guard, and the counter safety ceiling.
type TrackingConfig struct {
	// RateLimitThreshold is the maximum admitted views per (content, origin)
	// pair within RateLimitWindow before further attempts are rejected.
	RateLimitThreshold int `koanf:"rate_limit_threshold"`

	// RateLimitWindow is the trailing window for the rate check.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CooldownWindow is the minimum spacing between two admitted views from
	// the same origin for the same content.
	CooldownWindow time.Duration `koanf:"cooldown_window"`

	// MaxSafeCount is the counter safety ceiling. Increments at or beyond
	// this value fail with an overflow error and require an operator reset.
	MaxSafeCount int64 `koanf:"max_safe_count"`

	// BotDetectionEnabled toggles the bot classifier.
	BotDetectionEnabled bool `koanf:"bot_detection_enabled"`

	// RateLimitingEnabled toggles the rate and cooldown checks.
	RateLimitingEnabled bool `koanf:"rate_limiting_enabled"`

	// ExtraBotPatterns extends the built-in bot signature table.
	ExtraBotPatterns []string `koanf:"extra_bot_patterns"`

	// OriginBurstRPS and OriginBurstSize configure the in-memory per-origin
	// flood pre-filter (token bucket). The pre-filter only ever rejects; it
	// never admits on behalf of the ledger checks. 0 disables it.
	OriginBurstRPS  float64 `koanf:"origin_burst_rps"`
	OriginBurstSize int     `koanf:"origin_burst_size"`
}

// AnalyticsConfig holds read-side query settings.
type AnalyticsConfig struct {
	// TopReferrers is the N for the per-content top referring sources list.
	TopReferrers int `koanf:"top_referrers"`

	// TopContent is the N for the system-wide most-viewed content list.
	TopContent int `koanf:"top_content"`
}

// DetectionConfig holds suspicious-activity reporting settings.
type DetectionConfig struct {
	// WebhookURL receives detector findings as JSON POSTs when set.
	WebhookURL string `koanf:"webhook_url"`

	// WebhookEnabled toggles webhook delivery.
	WebhookEnabled bool `koanf:"webhook_enabled"`
}

// SecurityConfig holds transport-level protections for the API itself.
// These are distinct from the AbuseGuard admission checks: httprate protects
// the HTTP surface per client IP, AbuseGuard protects counter integrity per
// (content, origin) pair against the ledger.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must be non-negative, got %d", c.Database.RetentionDays)
	}
	if c.Tracking.RateLimitThreshold <= 0 {
		return fmt.Errorf("tracking.rate_limit_threshold must be positive, got %d", c.Tracking.RateLimitThreshold)
	}
	if c.Tracking.RateLimitWindow <= 0 {
		return fmt.Errorf("tracking.rate_limit_window must be positive, got %s", c.Tracking.RateLimitWindow)
	}
	if c.Tracking.CooldownWindow < 0 {
		return fmt.Errorf("tracking.cooldown_window must be non-negative, got %s", c.Tracking.CooldownWindow)
	}
	if c.Tracking.MaxSafeCount <= 0 {
		return fmt.Errorf("tracking.max_safe_count must be positive, got %d", c.Tracking.MaxSafeCount)
	}
	if c.Tracking.OriginBurstRPS < 0 {
		return fmt.Errorf("tracking.origin_burst_rps must be non-negative, got %f", c.Tracking.OriginBurstRPS)
	}
	if c.Analytics.TopReferrers <= 0 {
		return fmt.Errorf("analytics.top_referrers must be positive, got %d", c.Analytics.TopReferrers)
	}
	if c.Analytics.TopContent <= 0 {
		return fmt.Errorf("analytics.top_content must be positive, got %d", c.Analytics.TopContent)
	}
	if c.Detection.WebhookEnabled && c.Detection.WebhookURL == "" {
		return fmt.Errorf("detection.webhook_url must be set when detection.webhook_enabled is true")
	}
	return nil
}
