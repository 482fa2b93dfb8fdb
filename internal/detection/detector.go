// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

// Package detection analyzes the view ledger for abuse patterns and reports
// findings to operators. Diagnostic only: nothing here blocks or reverses
// an admission decision.
package detection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// Ledger is the detector's read-only view of the event history.
type Ledger interface {
	ListEventsSince(ctx context.Context, contentID string, since time.Time) ([]models.ViewEvent, error)
}

// Classifier is the bot signature table the detector reuses to spot
// classifier gaps.
type Classifier interface {
	Classify(signature string) (bool, string)
}

// Detector runs batch analysis passes over a ledger window.
type Detector struct {
	ledger     Ledger
	classifier Classifier
	threshold  int64
}

// NewDetector builds a detector sharing the tracker's rate threshold and
// bot table.
func NewDetector(ledger Ledger, classifier Classifier, rateThreshold int) *Detector {
	return &Detector{
		ledger:     ledger,
		classifier: classifier,
		threshold:  int64(rateThreshold),
	}
}

// pairKey groups ledger events by (content, origin).
type pairKey struct {
	contentID string
	origin    string
}

// Scan analyzes the trailing window and returns findings. An empty
// contentID scans the whole ledger. Three passes:
//
//  1. (content, origin) pairs whose attempt count exceeds the rate
//     threshold; severity high above five times the threshold.
//  2. Admitted events whose signature matches the bot table: a classifier
//     gap, since those should have been rejected.
//  3. Origins sending empty client signatures above the threshold.
func (d *Detector) Scan(ctx context.Context, contentID string, window time.Duration) ([]models.SuspiciousActivityRecord, error) {
	since := time.Now().UTC().Add(-window)
	events, err := d.ledger.ListEventsSince(ctx, contentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger window: %w", err)
	}

	now := time.Now().UTC()
	findings := []models.SuspiciousActivityRecord{}
	findings = append(findings, d.scanAttemptVolume(events, now)...)
	findings = append(findings, d.scanAdmittedBots(events, now)...)
	findings = append(findings, d.scanEmptySignatures(events, now)...)

	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ContentID != b.ContentID {
			return a.ContentID < b.ContentID
		}
		return a.Origin < b.Origin
	})

	for _, f := range findings {
		metrics.DetectorFindings.WithLabelValues(f.Kind, f.Severity).Inc()
	}
	logging.Ctx(ctx).Info().
		Int("events", len(events)).
		Int("findings", len(findings)).
		Str("window", window.String()).
		Msg("Suspicious activity scan complete")

	return findings, nil
}

// scanAttemptVolume flags pairs whose total attempt count (admitted and
// rejected) exceeds the rate threshold.
func (d *Detector) scanAttemptVolume(events []models.ViewEvent, now time.Time) []models.SuspiciousActivityRecord {
	counts := make(map[pairKey]int64)
	for _, ev := range events {
		counts[pairKey{ev.ContentID, ev.Origin}]++
	}

	findings := []models.SuspiciousActivityRecord{}
	for key, count := range counts {
		if count <= d.threshold {
			continue
		}
		severity := models.SeverityMedium
		if count > 5*d.threshold {
			severity = models.SeverityHigh
		}
		findings = append(findings, models.SuspiciousActivityRecord{
			ContentID:  key.contentID,
			Origin:     key.origin,
			Kind:       models.FindingRateLimitExceeded,
			Severity:   severity,
			Detail:     fmt.Sprintf("%d attempts in window, threshold %d", count, d.threshold),
			EventCount: count,
			ObservedAt: now,
		})
	}
	return findings
}

// scanAdmittedBots flags admitted events whose signature matches the bot
// table. These slipped past the classifier in force at admission time,
// typically after a pattern-table update.
func (d *Detector) scanAdmittedBots(events []models.ViewEvent, now time.Time) []models.SuspiciousActivityRecord {
	type gap struct {
		count int64
		label string
	}
	gaps := make(map[pairKey]gap)
	for _, ev := range events {
		if ev.Outcome != models.OutcomeAdmitted {
			continue
		}
		isBot, label := d.classifier.Classify(ev.UserAgent)
		if !isBot {
			continue
		}
		key := pairKey{ev.ContentID, ev.Origin}
		g := gaps[key]
		g.count++
		g.label = label
		gaps[key] = g
	}

	findings := []models.SuspiciousActivityRecord{}
	for key, g := range gaps {
		findings = append(findings, models.SuspiciousActivityRecord{
			ContentID:  key.contentID,
			Origin:     key.origin,
			Kind:       models.FindingBotDetected,
			Severity:   models.SeverityHigh,
			Detail:     fmt.Sprintf("%d admitted events match bot pattern %q", g.count, g.label),
			EventCount: g.count,
			ObservedAt: now,
		})
	}
	return findings
}

// scanEmptySignatures flags origins sending signature-less attempts above
// the threshold. Single empty signatures are legitimate privacy hardening;
// volume from one origin is tooling.
func (d *Detector) scanEmptySignatures(events []models.ViewEvent, now time.Time) []models.SuspiciousActivityRecord {
	counts := make(map[string]int64)
	for _, ev := range events {
		if ev.UserAgent == "" {
			counts[ev.Origin]++
		}
	}

	findings := []models.SuspiciousActivityRecord{}
	for origin, count := range counts {
		if count <= d.threshold {
			continue
		}
		findings = append(findings, models.SuspiciousActivityRecord{
			Origin:     origin,
			Kind:       models.FindingUnusualPattern,
			Severity:   models.SeverityMedium,
			Detail:     fmt.Sprintf("%d attempts without client signature", count),
			EventCount: count,
			ObservedAt: now,
		})
	}
	return findings
}
