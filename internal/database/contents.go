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

	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// UpsertContent creates or updates a content registry row. The host CMS
// calls this when content is created, published, or unpublished.
func (db *DB) UpsertContent(ctx context.Context, content *models.Content) error {
	start := time.Now()

	if content.CreatedAt.IsZero() {
		content.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO contents (id, title, published, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			published = EXCLUDED.published`

	_, err := db.conn.ExecContext(ctx, query,
		content.ID, content.Title, content.Published, content.CreatedAt)
	metrics.RecordDBQuery("upsert_content", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert content %s: %w", content.ID, err)
	}
	return nil
}

// GetContent fetches one content registry row. Returns ErrContentNotFound
// when the ID is unknown.
func (db *DB) GetContent(ctx context.Context, contentID string) (*models.Content, error) {
	start := time.Now()

	query := `SELECT id, title, published, created_at FROM contents WHERE id = ?`

	var content models.Content
	var title sql.NullString
	err := db.conn.QueryRowContext(ctx, query, contentID).
		Scan(&content.ID, &title, &content.Published, &content.CreatedAt)
	metrics.RecordDBQuery("get_content", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", contentID, err)
	}
	content.Title = title.String
	return &content, nil
}
