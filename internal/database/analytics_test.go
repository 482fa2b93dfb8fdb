// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/husarkar-hub/viewguard/internal/models"
)

func TestGetContentViewStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustUpsertContent(t, db, "alpha", true)
	for i := 0; i < 4; i++ {
		if _, err := db.IncrementViewCount(ctx, "alpha"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	ev := models.NewViewEvent("alpha", "203.0.113.9", "Mozilla/5.0", "https://news.example.com")
	ev.Admitted()
	ev.CreatedAt = now.Add(-time.Hour)
	if err := db.InsertViewEvent(ctx, ev); err != nil {
		t.Fatalf("insert event failed: %v", err)
	}
	ev2 := models.NewViewEvent("alpha", "198.51.100.7", "Mozilla/5.0", "")
	ev2.Admitted()
	ev2.CreatedAt = now.Add(-2 * time.Hour)
	if err := db.InsertViewEvent(ctx, ev2); err != nil {
		t.Fatalf("insert event failed: %v", err)
	}

	stats, err := db.GetContentViewStats(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("GetContentViewStats() failed: %v", err)
	}

	if stats.TotalViews != 4 {
		t.Errorf("TotalViews = %d, want 4", stats.TotalViews)
	}
	if stats.FormattedViews != "4" {
		t.Errorf("FormattedViews = %q, want \"4\"", stats.FormattedViews)
	}
	if stats.UniqueToday != 2 {
		t.Errorf("UniqueToday = %d, want 2", stats.UniqueToday)
	}
	// Content was created 48h ago: 4 views over 2 days
	if stats.AvgDailyViews != 2 {
		t.Errorf("AvgDailyViews = %d, want 2", stats.AvgDailyViews)
	}
	if len(stats.TopReferrers) != 2 {
		t.Fatalf("TopReferrers = %v, want 2 entries", stats.TopReferrers)
	}
	if len(stats.HourlyViews) != 24 {
		t.Fatalf("HourlyViews has %d buckets, want 24", len(stats.HourlyViews))
	}
	var hourlyTotal int64
	for _, b := range stats.HourlyViews {
		hourlyTotal += b.Count
	}
	if hourlyTotal != 2 {
		t.Errorf("hourly distribution sums to %d, want 2", hourlyTotal)
	}
	if stats.LastViewedAt == nil {
		t.Error("expected LastViewedAt to be set")
	}
}

func TestGetContentViewStatsNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetContentViewStats(context.Background(), "missing", 10)
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}

func TestGetSystemViewStats(t *testing.T) {
	db := setupTestDBWithCeiling(t, 1000)
	ctx := context.Background()
	now := time.Now().UTC()

	mustUpsertContent(t, db, "alpha", true)
	mustUpsertContent(t, db, "beta", true)
	for i := 0; i < 3; i++ {
		if _, err := db.IncrementViewCount(ctx, "alpha"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if _, err := db.IncrementViewCount(ctx, "beta"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	insertTestEvent(t, db, "alpha", "203.0.113.9", models.OutcomeAdmitted, "", now.Add(-time.Hour))
	insertTestEvent(t, db, "beta", "198.51.100.7", models.OutcomeAdmitted, "", now.Add(-3*24*time.Hour))

	// One corrupted counter shows up in the out-of-range list
	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO view_counters (content_id, view_count, created_at, updated_at)
		VALUES ('corrupt', -5, NOW(), NOW())`); err != nil {
		t.Fatalf("failed to seed corrupt counter: %v", err)
	}

	stats, err := db.GetSystemViewStats(ctx, 10)
	if err != nil {
		t.Fatalf("GetSystemViewStats() failed: %v", err)
	}

	if stats.TotalViews != 3+1-5 {
		t.Errorf("TotalViews = %d, want -1 (sum includes corrupt counter)", stats.TotalViews)
	}
	if stats.TrackedContent != 3 {
		t.Errorf("TrackedContent = %d, want 3", stats.TrackedContent)
	}
	if stats.MaxViews != 3 {
		t.Errorf("MaxViews = %d, want 3", stats.MaxViews)
	}
	if stats.ViewsToday != 1 {
		t.Errorf("ViewsToday = %d, want 1", stats.ViewsToday)
	}
	if stats.ViewsThisWeek != 2 {
		t.Errorf("ViewsThisWeek = %d, want 2", stats.ViewsThisWeek)
	}
	if len(stats.TopContent) != 3 {
		t.Fatalf("TopContent has %d entries, want 3", len(stats.TopContent))
	}
	if stats.TopContent[0].ContentID != "alpha" || stats.TopContent[0].ViewCount != 3 {
		t.Errorf("TopContent[0] = %+v, want alpha with 3 views", stats.TopContent[0])
	}
	if len(stats.OutOfRangeCounters) != 1 || stats.OutOfRangeCounters[0] != "corrupt" {
		t.Errorf("OutOfRangeCounters = %v, want [corrupt]", stats.OutOfRangeCounters)
	}
}
