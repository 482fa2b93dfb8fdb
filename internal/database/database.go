// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package database wraps the embedded DuckDB store: the contents registry,
// the append-only view ledger, the view counters, and the analytics queries.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/logging"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrContentNotFound is returned when the content ID is unknown or the
	// content is not published.
	ErrContentNotFound = errors.New("content not found")

	// ErrCounterOverflow is returned when an increment would push a counter
	// past the configured safety ceiling. Nothing is written.
	ErrCounterOverflow = errors.New("view counter exceeds safe limit")
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// maxSafeCount is the counter ceiling checked by IncrementViewCount
	// and used by the out-of-range scan.
	maxSafeCount int64

	// Per-content write locks for concurrent counter UPSERTs.
	counterLocks sync.Map
}

// New creates a new database connection and initializes the schema.
// maxSafeCount is the counter safety ceiling from tracking config.
func New(cfg *config.DatabaseConfig, maxSafeCount int64) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Ensure the parent directory exists for file-backed databases.
	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:         conn,
		cfg:          cfg,
		maxSafeCount: maxSafeCount,
	}

	// DuckDB is an embedded single-writer engine; a small pool avoids
	// write-write contention at the driver level.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.createTables(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", maxMemory).
		Msg("Database initialized")

	return db, nil
}

// Close checkpoints and closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Flush the WAL so the next startup does not replay it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()

	return db.conn.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// MaxSafeCount returns the configured counter safety ceiling.
func (db *DB) MaxSafeCount() int64 {
	return db.maxSafeCount
}

// acquireCounterLock acquires the per-content counter mutex. Distinct
// content IDs never contend on the same lock.
func (db *DB) acquireCounterLock(contentID string) *sync.Mutex {
	muInterface, _ := db.counterLocks.LoadOrStore(contentID, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		db.counterLocks.Store(contentID, mu)
	}
	mu.Lock()
	return mu
}

// closeQuietly closes a resource ignoring the error, for cleanup paths
// where a close failure has nothing actionable.
func closeQuietly(c interface{ Close() error }) {
	_ = c.Close()
}

// closeRows closes sql.Rows and logs a close failure.
func closeRows(rows *sql.Rows, operation string) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Str("operation", operation).Msg("Failed to close rows")
	}
}
