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

	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
)

// IncrementViewCount atomically adds one admitted view to a content's
// counter and returns the new value. The whole read-check-write sequence
// runs under the per-content mutex and a single transaction, so concurrent
// increments for the same content never lose updates while distinct
// content IDs proceed in parallel.
//
// Returns ErrContentNotFound for unknown or unpublished content and
// ErrCounterOverflow when the stored value already sits at or above the
// safety ceiling (nothing is written in that case).
func (db *DB) IncrementViewCount(ctx context.Context, contentID string) (int64, error) {
	mu := db.acquireCounterLock(contentID)
	defer mu.Unlock()

	start := time.Now()
	newCount, err := db.incrementLocked(ctx, contentID)
	metrics.CounterIncrementDuration.Observe(time.Since(start).Seconds())
	metrics.RecordDBQuery("increment_view_count", time.Since(start), err)
	return newCount, err
}

func (db *DB) incrementLocked(ctx context.Context, contentID string) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin increment transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	var published bool
	err = tx.QueryRowContext(ctx,
		`SELECT published FROM contents WHERE id = ?`, contentID).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrContentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check content %s: %w", contentID, err)
	}
	if !published {
		return 0, ErrContentNotFound
	}

	// Overflow check before any write: an increment at the ceiling must
	// leave the stored value untouched.
	var current sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT view_count FROM view_counters WHERE content_id = ?`, contentID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read counter for %s: %w", contentID, err)
	}
	if current.Valid && current.Int64 >= db.maxSafeCount {
		return 0, ErrCounterOverflow
	}

	// GREATEST clamps a corrupted negative value to zero before adding one,
	// so a counter is never observed below zero after an increment.
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO view_counters (content_id, view_count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (content_id) DO UPDATE SET
			view_count = GREATEST(view_counters.view_count, 0) + 1,
			updated_at = EXCLUDED.updated_at`,
		contentID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter for %s: %w", contentID, err)
	}

	var newCount int64
	err = tx.QueryRowContext(ctx,
		`SELECT view_count FROM view_counters WHERE content_id = ?`, contentID).Scan(&newCount)
	if err != nil {
		return 0, fmt.Errorf("failed to read back counter for %s: %w", contentID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit increment for %s: %w", contentID, err)
	}
	return newCount, nil
}

// GetViewCount returns a content's current counter value, or zero when no
// counter row exists yet.
func (db *DB) GetViewCount(ctx context.Context, contentID string) (int64, error) {
	start := time.Now()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT view_count FROM view_counters WHERE content_id = ?`, contentID).Scan(&count)
	metrics.RecordDBQuery("get_view_count", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter for %s: %w", contentID, err)
	}
	return count, nil
}

// ResetViewCount sets a content's counter to an explicit value. Operator
// action; the new value must lie within [0, MaxSafeCount].
func (db *DB) ResetViewCount(ctx context.Context, contentID string, newCount int64) error {
	if newCount < 0 || newCount > db.maxSafeCount {
		return fmt.Errorf("reset value %d outside [0, %d]", newCount, db.maxSafeCount)
	}

	mu := db.acquireCounterLock(contentID)
	defer mu.Unlock()

	start := time.Now()
	err := db.resetLocked(ctx, contentID, newCount)
	metrics.RecordDBQuery("reset_view_count", time.Since(start), err)
	return err
}

func (db *DB) resetLocked(ctx context.Context, contentID string, newCount int64) error {
	// Resets apply to any registered content, published or not: operators
	// fix counters on unpublished content too.
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contents WHERE id = ?)`, contentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check content %s: %w", contentID, err)
	}
	if !exists {
		return ErrContentNotFound
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO view_counters (content_id, view_count, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (content_id) DO UPDATE SET
			view_count = EXCLUDED.view_count,
			updated_at = EXCLUDED.updated_at`,
		contentID, newCount, now, now)
	if err != nil {
		return fmt.Errorf("failed to reset counter for %s: %w", contentID, err)
	}

	logging.Ctx(ctx).Info().
		Str("content_id", contentID).
		Int64("new_count", newCount).
		Msg("View counter reset")
	return nil
}

// BulkFixViewCounts repairs out-of-range counters: negative values become
// exactly zero, values above the safety ceiling are clamped to it. Returns
// the number of counters fixed.
func (db *DB) BulkFixViewCounts(ctx context.Context) (int64, error) {
	start := time.Now()
	now := time.Now().UTC()

	var fixed int64
	res, err := db.conn.ExecContext(ctx, `
		UPDATE view_counters SET view_count = 0, updated_at = ?
		WHERE view_count < 0`, now)
	if err != nil {
		metrics.RecordDBQuery("bulk_fix_view_counts", time.Since(start), err)
		return 0, fmt.Errorf("failed to fix negative counters: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		fixed += n
	}

	res, err = db.conn.ExecContext(ctx, `
		UPDATE view_counters SET view_count = ?, updated_at = ?
		WHERE view_count > ?`, db.maxSafeCount, now, db.maxSafeCount)
	metrics.RecordDBQuery("bulk_fix_view_counts", time.Since(start), err)
	if err != nil {
		return fixed, fmt.Errorf("failed to clamp oversized counters: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		fixed += n
	}

	if fixed > 0 {
		logging.Ctx(ctx).Info().Int64("fixed", fixed).Msg("Bulk counter fix applied")
	}
	return fixed, nil
}

// rollbackQuietly rolls back a transaction, ignoring the error returned
// after a successful commit.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Warn().Err(err).Msg("Failed to rollback transaction")
	}
}
