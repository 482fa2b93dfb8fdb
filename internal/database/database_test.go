// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// setupTestDB creates an in-memory database with the default safety ceiling.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	return setupTestDBWithCeiling(t, math.MaxInt64)
}

// setupTestDBWithCeiling creates an in-memory database with an explicit
// counter ceiling for overflow tests.
func setupTestDBWithCeiling(t *testing.T, maxSafeCount int64) *DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	}
	db, err := New(cfg, maxSafeCount)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if cerr := db.Close(); cerr != nil {
			t.Errorf("failed to close test database: %v", cerr)
		}
	})
	return db
}

// mustUpsertContent registers a content row or fails the test.
func mustUpsertContent(t *testing.T, db *DB, id string, published bool) {
	t.Helper()
	err := db.UpsertContent(context.Background(), &models.Content{
		ID:        id,
		Title:     "Test " + id,
		Published: published,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to upsert content %s: %v", id, err)
	}
}

func TestNewAndPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.createTables(context.Background()); err != nil {
		t.Errorf("re-running schema creation failed: %v", err)
	}
}

func TestUpsertAndGetContent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustUpsertContent(t, db, "alpha", true)

	content, err := db.GetContent(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if content.ID != "alpha" || !content.Published {
		t.Errorf("unexpected content: %+v", content)
	}

	// Upsert flips the published flag without duplicating the row
	err = db.UpsertContent(ctx, &models.Content{ID: "alpha", Published: false})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	content, err = db.GetContent(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetContent() after upsert failed: %v", err)
	}
	if content.Published {
		t.Error("expected published=false after upsert")
	}
}

func TestGetContentNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetContent(context.Background(), "missing")
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}
