// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// ErrMissingContentID is returned for attempts without a content ID.
// Validation errors produce no side effects, not even a ledger row.
var ErrMissingContentID = errors.New("content id is required")

// Store is what the tracker needs from the database: the guard's history
// view plus the counter and the ledger append.
type Store interface {
	LedgerHistory
	IncrementViewCount(ctx context.Context, contentID string) (int64, error)
	InsertViewEvent(ctx context.Context, event *models.ViewEvent) error
}

// Request is one view attempt as seen by the pipeline. Origin and
// UserAgent come from transport metadata; Referrer and Metadata from the
// request body, both optional. Metadata must be a JSON object string.
type Request struct {
	ContentID string
	Origin    string
	UserAgent string
	Referrer  string
	Metadata  string
}

// Result is the pipeline outcome for one attempt.
//
// Rejections are results, not errors: Reason carries the code and the
// rejection has already been recorded to the ledger. LedgerErr reports a
// failed audit append after a successful increment; the count stands.
type Result struct {
	Admitted  bool
	Reason    string
	NewCount  int64
	LedgerErr error
}

// Tracker runs the admission pipeline: classify, guard, increment, record.
type Tracker struct {
	store      Store
	classifier *BotClassifier
	guard      *AbuseGuard

	botDetection bool
	rateLimiting bool
}

// NewTracker wires the pipeline from tracking config.
func NewTracker(store Store, cfg *config.TrackingConfig) *Tracker {
	return &Tracker{
		store:        store,
		classifier:   NewBotClassifier(cfg.ExtraBotPatterns),
		guard:        NewAbuseGuard(store, cfg),
		botDetection: cfg.BotDetectionEnabled,
		rateLimiting: cfg.RateLimitingEnabled,
	}
}

// Classifier exposes the tracker's bot table for the detector, which reuses
// it to find classifier gaps.
func (t *Tracker) Classifier() *BotClassifier {
	return t.classifier
}

// Track processes one view attempt to its terminal state.
//
// Errors are reserved for faults: missing content ID, unknown content,
// counter overflow, and storage failures. A storage failure during the
// guard checks fails closed with no ledger row (the guard's own state is
// unknown, so nothing trustworthy can be recorded).
func (t *Tracker) Track(ctx context.Context, req Request) (*Result, error) {
	if req.ContentID == "" {
		return nil, ErrMissingContentID
	}

	event := models.NewViewEvent(req.ContentID, req.Origin, req.UserAgent, req.Referrer)
	if req.Metadata != "" {
		event.Metadata = req.Metadata
	}

	if t.botDetection {
		if isBot, label := t.classifier.Classify(req.UserAgent); isBot {
			logging.Ctx(ctx).Debug().
				Str("content_id", req.ContentID).
				Str("origin", req.Origin).
				Str("pattern", label).
				Msg("View rejected: bot signature")
			return t.reject(ctx, event, models.ReasonBotDetected), nil
		}
	}

	if t.rateLimiting {
		decision, err := t.guard.Admit(ctx, req.ContentID, req.Origin, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("abuse guard failed closed: %w", err)
		}
		if !decision.Admitted {
			return t.reject(ctx, event, decision.Reason), nil
		}
	}

	newCount, err := t.store.IncrementViewCount(ctx, req.ContentID)
	if err != nil {
		// NotFound, Overflow, and storage faults all surface unchanged;
		// none of them produces a ledger row.
		return nil, err
	}

	result := &Result{Admitted: true, NewCount: newCount}
	metrics.RecordDecision(models.OutcomeAdmitted, "")

	// The increment already committed. A failed audit append cannot void
	// it; report the gap instead.
	if err := t.store.InsertViewEvent(ctx, event.Admitted()); err != nil {
		metrics.LedgerWriteFailures.Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("content_id", req.ContentID).
			Msg("Ledger append failed after committed increment")
		result.LedgerErr = err
	}

	return result, nil
}

// reject records a rejection to the ledger and builds its Result. A failed
// ledger write here is logged and surfaced on the Result, but the decision
// itself stands.
func (t *Tracker) reject(ctx context.Context, event *models.ViewEvent, reason string) *Result {
	result := &Result{Admitted: false, Reason: reason}
	metrics.RecordDecision(models.OutcomeRejected, reason)

	if err := t.store.InsertViewEvent(ctx, event.Rejected(reason)); err != nil {
		metrics.LedgerWriteFailures.Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("content_id", event.ContentID).
			Str("reason", reason).
			Msg("Ledger append failed for rejection")
		result.LedgerErr = err
	}
	return result
}
