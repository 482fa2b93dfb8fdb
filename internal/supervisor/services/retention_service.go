// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package services

import (
	"context"
	"time"

	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
)

// EventPurger is the slice of the database the janitor needs.
type EventPurger interface {
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionService periodically purges ledger events older than the
// retention horizon. Counters are never touched: retention trims the audit
// trail, not the counts derived from it.
type RetentionService struct {
	purger        EventPurger
	retentionDays int
	initialDelay  time.Duration
	interval      time.Duration
}

// NewRetentionService creates the janitor. retentionDays <= 0 disables
// purging; the service then idles so the tree shape stays the same.
func NewRetentionService(purger EventPurger, retentionDays int) *RetentionService {
	return &RetentionService{
		purger:        purger,
		retentionDays: retentionDays,
		initialDelay:  time.Minute,
		interval:      time.Hour,
	}
}

// Serve implements suture.Service.
func (s *RetentionService) Serve(ctx context.Context) error {
	if s.retentionDays <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	// First purge shortly after startup, then hourly.
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.purgeOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *RetentionService) purgeOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	purgeCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	purged, err := s.purger.PurgeEventsBefore(purgeCtx, cutoff)
	if err != nil {
		logging.Error().Err(err).Time("cutoff", cutoff).Msg("Ledger retention purge failed")
		return
	}
	if purged > 0 {
		metrics.RetentionPurgedEvents.Add(float64(purged))
		logging.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Ledger retention purge complete")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *RetentionService) String() string {
	return "retention-janitor"
}
