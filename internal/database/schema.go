// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package database

import (
	"context"
	"fmt"
)

// getTableCreationQueries returns the schema DDL in dependency order.
// All statements are idempotent (IF NOT EXISTS) so startup can run them
// unconditionally.
func getTableCreationQueries() []string {
	return []string{
		// Minimal content registry the host CMS syncs into. Gives the
		// increment path its not-found semantics and analytics its
		// days-since-creation denominator.
		`CREATE TABLE IF NOT EXISTS contents (
			id TEXT PRIMARY KEY,
			title TEXT,
			published BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		// Append-only view ledger. One row per attempt, admitted or
		// rejected; rows are never updated.
		`CREATE TABLE IF NOT EXISTS view_events (
			id UUID PRIMARY KEY,
			content_id TEXT NOT NULL,
			origin TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			referrer TEXT NOT NULL DEFAULT 'Direct',
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,

		// Durable view counters. Created on first admitted view; mutated
		// only by increment, admin reset, and bulk fix.
		`CREATE TABLE IF NOT EXISTS view_counters (
			content_id TEXT PRIMARY KEY,
			view_count BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// (content_id, origin, created_at) serves the guard's rate and
		// cooldown lookups; created_at serves retention; outcome serves
		// the analytics admitted-only scans.
		`CREATE INDEX IF NOT EXISTS idx_view_events_pair
			ON view_events (content_id, origin, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_view_events_created
			ON view_events (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_view_events_outcome
			ON view_events (outcome)`,
	}
}

// createTables initializes the schema.
func (db *DB) createTables(ctx context.Context) error {
	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
