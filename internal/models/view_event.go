// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package models defines the shared data structures: the ledger event, the
// analytics read models, and the reason-code vocabulary used across the
// tracking pipeline, the API, and the detector.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Event outcomes. Every view attempt lands in the ledger with exactly one.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
)

// Rejection reason codes. These are the stable vocabulary shared by the
// ledger, the 429 response details, and detector findings.
const (
	ReasonBotDetected       = "bot_detected"
	ReasonRateLimitExceeded = "rate_limit_exceeded"
	ReasonCooldownActive    = "cooldown_active"
)

// ReferrerDirect is recorded when no referrer information is available.
const ReferrerDirect = "Direct"

// ViewEvent is one row of the append-only view ledger: a single view
// attempt, admitted or rejected. Rows are never updated after insert.
type ViewEvent struct {
	ID        uuid.UUID `json:"id"`
	ContentID string    `json:"content_id"`
	Origin    string    `json:"origin"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewViewEvent builds a ledger event with a fresh ID and timestamp.
// Referrer defaults to ReferrerDirect when empty.
func NewViewEvent(contentID, origin, userAgent, referrer string) *ViewEvent {
	if referrer == "" {
		referrer = ReferrerDirect
	}
	return &ViewEvent{
		ID:        uuid.New(),
		ContentID: contentID,
		Origin:    origin,
		UserAgent: userAgent,
		Referrer:  referrer,
		Metadata:  "{}",
		CreatedAt: time.Now().UTC(),
	}
}

// Admitted marks the event as admitted.
func (e *ViewEvent) Admitted() *ViewEvent {
	e.Outcome = OutcomeAdmitted
	e.Reason = ""
	return e
}

// Rejected marks the event as rejected with the given reason code.
func (e *ViewEvent) Rejected(reason string) *ViewEvent {
	e.Outcome = OutcomeRejected
	e.Reason = reason
	return e
}

// Content is the minimal registry row the host CMS syncs in. Viewguard only
// needs to know a content ID exists and whether it is published; everything
// else about the content lives in the CMS.
type Content struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}
