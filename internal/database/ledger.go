// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// InsertViewEvent appends one event to the view ledger. Ledger rows are
// never updated or deleted outside retention purges.
func (db *DB) InsertViewEvent(ctx context.Context, event *models.ViewEvent) error {
	start := time.Now()

	query := `
		INSERT INTO view_events
			(id, content_id, origin, user_agent, referrer, outcome, reason, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		event.ID.String(), event.ContentID, event.Origin, event.UserAgent,
		event.Referrer, event.Outcome, event.Reason, event.Metadata, event.CreatedAt)
	metrics.RecordDBQuery("insert_view_event", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert view event for %s: %w", event.ContentID, err)
	}
	return nil
}

// CountAdmittedEvents counts admitted ledger events for a (content, origin)
// pair since the given time. Used by the guard's rate check: only admitted
// events count against the threshold.
func (db *DB) CountAdmittedEvents(ctx context.Context, contentID, origin string, since time.Time) (int64, error) {
	start := time.Now()

	query := `
		SELECT COUNT(*) FROM view_events
		WHERE content_id = ? AND origin = ? AND outcome = ? AND created_at >= ?`

	var count int64
	err := db.conn.QueryRowContext(ctx, query,
		contentID, origin, models.OutcomeAdmitted, since).Scan(&count)
	metrics.RecordDBQuery("count_admitted_events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count admitted events for %s: %w", contentID, err)
	}
	return count, nil
}

// LastAdmittedEventAt returns the timestamp of the most recent admitted
// event for a (content, origin) pair. The zero time means no admitted
// event exists. Used by the guard's cooldown check.
func (db *DB) LastAdmittedEventAt(ctx context.Context, contentID, origin string) (time.Time, error) {
	start := time.Now()

	query := `
		SELECT created_at FROM view_events
		WHERE content_id = ? AND origin = ? AND outcome = ?
		ORDER BY created_at DESC
		LIMIT 1`

	var last time.Time
	err := db.conn.QueryRowContext(ctx, query,
		contentID, origin, models.OutcomeAdmitted).Scan(&last)
	metrics.RecordDBQuery("last_admitted_event_at", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last admitted event for %s: %w", contentID, err)
	}
	return last, nil
}

// ListEventsSince returns ledger events newer than since, oldest first.
// An empty contentID scans the whole ledger. Used by the detector.
func (db *DB) ListEventsSince(ctx context.Context, contentID string, since time.Time) ([]models.ViewEvent, error) {
	start := time.Now()

	query := `
		SELECT id, content_id, origin, user_agent, referrer, outcome, reason, metadata, created_at
		FROM view_events
		WHERE created_at >= ?`
	args := []interface{}{since}
	if contentID != "" {
		query += ` AND content_id = ?`
		args = append(args, contentID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("list_events_since", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list view events: %w", err)
	}
	defer closeRows(rows, "list_events_since")

	events := []models.ViewEvent{}
	for rows.Next() {
		var ev models.ViewEvent
		var id string
		if err := rows.Scan(&id, &ev.ContentID, &ev.Origin, &ev.UserAgent,
			&ev.Referrer, &ev.Outcome, &ev.Reason, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan view event: %w", err)
		}
		if parsed, perr := uuid.Parse(id); perr == nil {
			ev.ID = parsed
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate view events: %w", err)
	}
	return events, nil
}

// PurgeEventsBefore deletes ledger events older than the cutoff and returns
// the number of rows removed. Driven by the retention janitor.
func (db *DB) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM view_events WHERE created_at < ?`, cutoff)
	metrics.RecordDBQuery("purge_events_before", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge view events: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge row count: %w", err)
	}
	return purged, nil
}
