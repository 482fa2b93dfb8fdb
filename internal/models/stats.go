// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package models

import "time"

// ReferrerCount is one entry of a top-referrers list.
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

// HourlyBucket is one hour of the trailing-day view distribution.
// Hour is 0-23 in UTC.
type HourlyBucket struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// ViewStats is the per-content analytics read model.
type ViewStats struct {
	ContentID      string          `json:"content_id"`
	Title          string          `json:"title,omitempty"`
	TotalViews     int64           `json:"total_views"`
	FormattedViews string          `json:"formatted_views"`
	UniqueToday    int64           `json:"unique_origins_today"`
	UniqueWeek     int64           `json:"unique_origins_week"`
	AvgDailyViews  int64           `json:"avg_daily_views"`
	TopReferrers   []ReferrerCount `json:"top_referrers"`
	HourlyViews    []HourlyBucket  `json:"hourly_views"`
	LastViewedAt   *time.Time      `json:"last_viewed_at,omitempty"`
}

// ContentViews is one entry of the system-wide most-viewed list.
type ContentViews struct {
	ContentID      string `json:"content_id"`
	Title          string `json:"title,omitempty"`
	ViewCount      int64  `json:"view_count"`
	FormattedViews string `json:"formatted_views"`
}

// SystemStats is the system-wide analytics read model.
type SystemStats struct {
	TotalViews          int64          `json:"total_views"`
	FormattedTotalViews string         `json:"formatted_total_views"`
	TrackedContent      int64          `json:"tracked_content"`
	AvgViewsPerContent  int64          `json:"avg_views_per_content"`
	MaxViews            int64          `json:"max_views"`
	ViewsToday          int64          `json:"views_today"`
	ViewsThisWeek       int64          `json:"views_this_week"`
	UniqueOriginsToday  int64          `json:"unique_origins_today"`
	UniqueOriginsWeek   int64          `json:"unique_origins_week"`
	TopContent          []ContentViews `json:"top_content"`

	// OutOfRangeCounters lists content IDs whose stored counter falls
	// outside [0, MaxSafeCount]. Candidates for bulk_fix_view_counts.
	OutOfRangeCounters []string `json:"out_of_range_counters"`
}

// Detector finding kinds.
const (
	FindingRateLimitExceeded = "rate_limit_exceeded"
	FindingBotDetected       = "bot_detected"
	FindingUnusualPattern    = "unusual_pattern"
)

// Detector severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SuspiciousActivityRecord is one detector finding. Findings are diagnostic
// only; nothing in the write path acts on them.
type SuspiciousActivityRecord struct {
	ContentID  string    `json:"content_id,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Detail     string    `json:"detail"`
	EventCount int64     `json:"event_count"`
	ObservedAt time.Time `json:"observed_at"`
}
