// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// GetContentViewStats builds the per-content analytics read model. Only a
// missing content row fails the call; individual sub-query failures are
// logged and degrade to zero values or empty slices so the dashboard still
// renders the totals it can get.
func (db *DB) GetContentViewStats(ctx context.Context, contentID string, topReferrers int) (*models.ViewStats, error) {
	start := time.Now()

	content, err := db.GetContent(ctx, contentID)
	if err != nil {
		metrics.RecordDBQuery("get_content_view_stats", time.Since(start), err)
		return nil, err
	}

	now := time.Now().UTC()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := &models.ViewStats{
		ContentID:    contentID,
		Title:        content.Title,
		TopReferrers: []models.ReferrerCount{},
		HourlyViews:  []models.HourlyBucket{},
	}

	total, err := db.GetViewCount(ctx, contentID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("content_id", contentID).Msg("Counter read failed, stats degrade to zero")
	}
	stats.TotalViews = total
	stats.FormattedViews = models.FormatViewCount(total)

	// Rounded average daily views since content creation. The divisor is
	// at least one day so fresh content shows its full count.
	days := now.Sub(content.CreatedAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	stats.AvgDailyViews = int64(math.Round(float64(total) / math.Floor(days)))

	if unique, qerr := db.countUniqueOrigins(ctx, contentID, dayAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Str("content_id", contentID).Msg("Unique origins (day) query failed")
	} else {
		stats.UniqueToday = unique
	}
	if unique, qerr := db.countUniqueOrigins(ctx, contentID, weekAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Str("content_id", contentID).Msg("Unique origins (week) query failed")
	} else {
		stats.UniqueWeek = unique
	}

	if referrers, qerr := db.topReferrers(ctx, contentID, weekAgo, topReferrers); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Str("content_id", contentID).Msg("Top referrers query failed")
	} else {
		stats.TopReferrers = referrers
	}

	if hourly, qerr := db.hourlyViews(ctx, contentID, dayAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Str("content_id", contentID).Msg("Hourly distribution query failed")
	} else {
		stats.HourlyViews = hourly
	}

	if last, qerr := db.lastAdmittedAt(ctx, contentID); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Str("content_id", contentID).Msg("Last viewed query failed")
	} else if !last.IsZero() {
		stats.LastViewedAt = &last
	}

	metrics.RecordDBQuery("get_content_view_stats", time.Since(start), nil)
	return stats, nil
}

// GetSystemViewStats builds the system-wide analytics read model. Counter
// aggregates come from view_counters; today/week activity from the ledger.
func (db *DB) GetSystemViewStats(ctx context.Context, topContent int) (*models.SystemStats, error) {
	start := time.Now()

	now := time.Now().UTC()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := &models.SystemStats{
		TopContent:         []models.ContentViews{},
		OutOfRangeCounters: []string{},
	}

	var avg float64
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(view_count), 0),
		       COUNT(*),
		       COALESCE(AVG(view_count), 0),
		       COALESCE(MAX(view_count), 0)
		FROM view_counters`).
		Scan(&stats.TotalViews, &stats.TrackedContent, &avg, &stats.MaxViews)
	if err != nil {
		metrics.RecordDBQuery("get_system_view_stats", time.Since(start), err)
		return nil, fmt.Errorf("failed to aggregate counters: %w", err)
	}
	stats.AvgViewsPerContent = int64(math.Round(avg))
	stats.FormattedTotalViews = models.FormatViewCount(stats.TotalViews)

	if n, qerr := db.countAdmittedSince(ctx, dayAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Views today query failed")
	} else {
		stats.ViewsToday = n
	}
	if n, qerr := db.countAdmittedSince(ctx, weekAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Views this week query failed")
	} else {
		stats.ViewsThisWeek = n
	}
	if n, qerr := db.countUniqueOrigins(ctx, "", dayAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Unique origins today query failed")
	} else {
		stats.UniqueOriginsToday = n
	}
	if n, qerr := db.countUniqueOrigins(ctx, "", weekAgo); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Unique origins this week query failed")
	} else {
		stats.UniqueOriginsWeek = n
	}

	if top, qerr := db.topContentByViews(ctx, topContent); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Top content query failed")
	} else {
		stats.TopContent = top
	}

	if bad, qerr := db.outOfRangeCounters(ctx); qerr != nil {
		logging.Ctx(ctx).Warn().Err(qerr).Msg("Out-of-range counter scan failed")
	} else {
		stats.OutOfRangeCounters = bad
	}

	metrics.RecordDBQuery("get_system_view_stats", time.Since(start), nil)
	return stats, nil
}

// countUniqueOrigins counts distinct origins with admitted events since the
// given time. An empty contentID counts system-wide.
func (db *DB) countUniqueOrigins(ctx context.Context, contentID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT origin) FROM view_events
		WHERE outcome = ? AND created_at >= ?`
	args := []interface{}{models.OutcomeAdmitted, since}
	if contentID != "" {
		query += ` AND content_id = ?`
		args = append(args, contentID)
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unique origins: %w", err)
	}
	return count, nil
}

// countAdmittedSince counts admitted events across all content since the
// given time.
func (db *DB) countAdmittedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM view_events
		WHERE outcome = ? AND created_at >= ?`,
		models.OutcomeAdmitted, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admitted events: %w", err)
	}
	return count, nil
}

// topReferrers returns the most frequent referrers of admitted events for a
// content since the given time.
func (db *DB) topReferrers(ctx context.Context, contentID string, since time.Time, limit int) ([]models.ReferrerCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT referrer, COUNT(*) AS cnt FROM view_events
		WHERE content_id = ? AND outcome = ? AND created_at >= ?
		GROUP BY referrer
		ORDER BY cnt DESC, referrer ASC
		LIMIT ?`,
		contentID, models.OutcomeAdmitted, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top referrers: %w", err)
	}
	defer closeRows(rows, "top_referrers")

	referrers := []models.ReferrerCount{}
	for rows.Next() {
		var rc models.ReferrerCount
		if err := rows.Scan(&rc.Referrer, &rc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan referrer row: %w", err)
		}
		referrers = append(referrers, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrer rows: %w", err)
	}
	return referrers, nil
}

// hourlyViews returns the 24-bucket hourly distribution of admitted events
// since the given time. Every hour appears, zero counts included.
func (db *DB) hourlyViews(ctx context.Context, contentID string, since time.Time) ([]models.HourlyBucket, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT EXTRACT(hour FROM created_at) AS h, COUNT(*) FROM view_events
		WHERE content_id = ? AND outcome = ? AND created_at >= ?
		GROUP BY h`,
		contentID, models.OutcomeAdmitted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly distribution: %w", err)
	}
	defer closeRows(rows, "hourly_views")

	counts := make(map[int]int64, 24)
	for rows.Next() {
		var hour int
		var count int64
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("failed to scan hourly row: %w", err)
		}
		counts[hour] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hourly rows: %w", err)
	}

	buckets := make([]models.HourlyBucket, 24)
	for h := 0; h < 24; h++ {
		buckets[h] = models.HourlyBucket{Hour: h, Count: counts[h]}
	}
	return buckets, nil
}

// lastAdmittedAt returns the newest admitted event timestamp for a content,
// zero time when none exists.
func (db *DB) lastAdmittedAt(ctx context.Context, contentID string) (time.Time, error) {
	var last sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM view_events
		WHERE content_id = ? AND outcome = ?`,
		contentID, models.OutcomeAdmitted).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last admitted event: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// topContentByViews returns the highest counters joined with registry titles.
func (db *DB) topContentByViews(ctx context.Context, limit int) ([]models.ContentViews, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT vc.content_id, COALESCE(c.title, ''), vc.view_count
		FROM view_counters vc
		LEFT JOIN contents c ON c.id = vc.content_id
		ORDER BY vc.view_count DESC, vc.content_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top content: %w", err)
	}
	defer closeRows(rows, "top_content")

	top := []models.ContentViews{}
	for rows.Next() {
		var cv models.ContentViews
		if err := rows.Scan(&cv.ContentID, &cv.Title, &cv.ViewCount); err != nil {
			return nil, fmt.Errorf("failed to scan top content row: %w", err)
		}
		cv.FormattedViews = models.FormatViewCount(cv.ViewCount)
		top = append(top, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top content rows: %w", err)
	}
	return top, nil
}

// outOfRangeCounters lists content IDs whose counter sits outside
// [0, MaxSafeCount]. These are the candidates for bulk_fix_view_counts.
func (db *DB) outOfRangeCounters(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT content_id FROM view_counters
		WHERE view_count < 0 OR view_count > ?
		ORDER BY content_id ASC`, db.maxSafeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}
	defer closeRows(rows, "out_of_range_counters")

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan counter row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counter rows: %w", err)
	}
	return ids, nil
}
