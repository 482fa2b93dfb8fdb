// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/husarkar-hub/viewguard/internal/models"
	"github.com/husarkar-hub/viewguard/internal/tracking"
)

// fakeLedger serves a fixed event slice.
type fakeLedger struct {
	events []models.ViewEvent
	err    error
}

func (f *fakeLedger) ListEventsSince(_ context.Context, contentID string, _ time.Time) ([]models.ViewEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if contentID == "" {
		return f.events, nil
	}
	filtered := []models.ViewEvent{}
	for _, ev := range f.events {
		if ev.ContentID == contentID {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

func makeEvents(contentID, origin, userAgent, outcome string, n int) []models.ViewEvent {
	events := make([]models.ViewEvent, 0, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		ev := models.NewViewEvent(contentID, origin, userAgent, "")
		ev.Outcome = outcome
		ev.CreatedAt = now.Add(-time.Duration(i) * time.Minute)
		events = append(events, *ev)
	}
	return events
}

func findByKind(findings []models.SuspiciousActivityRecord, kind string) []models.SuspiciousActivityRecord {
	out := []models.SuspiciousActivityRecord{}
	for _, f := range findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestScanAttemptVolume(t *testing.T) {
	const threshold = 10
	browser := "Mozilla/5.0 (X11; Linux x86_64) Firefox/122.0"

	ledger := &fakeLedger{}
	// 50 attempts: above threshold, exactly 5x, stays medium
	ledger.events = append(ledger.events, makeEvents("alpha", "203.0.113.9", browser, models.OutcomeRejected, 50)...)
	// 51 attempts: above 5x, high
	ledger.events = append(ledger.events, makeEvents("beta", "203.0.113.9", browser, models.OutcomeRejected, 51)...)
	// 10 attempts: at threshold, not flagged
	ledger.events = append(ledger.events, makeEvents("gamma", "203.0.113.9", browser, models.OutcomeAdmitted, 10)...)

	d := NewDetector(ledger, tracking.NewBotClassifier(nil), threshold)
	findings, err := d.Scan(context.Background(), "", time.Hour)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	volume := findByKind(findings, models.FindingRateLimitExceeded)
	if len(volume) != 2 {
		t.Fatalf("volume findings = %d, want 2: %+v", len(volume), volume)
	}
	// Findings are sorted by content ID within a kind
	if volume[0].ContentID != "alpha" || volume[0].Severity != models.SeverityMedium {
		t.Errorf("alpha finding = %+v, want medium severity", volume[0])
	}
	if volume[1].ContentID != "beta" || volume[1].Severity != models.SeverityHigh {
		t.Errorf("beta finding = %+v, want high severity", volume[1])
	}
	if volume[1].EventCount != 51 {
		t.Errorf("beta EventCount = %d, want 51", volume[1].EventCount)
	}
}

func TestScanAdmittedBots(t *testing.T) {
	ledger := &fakeLedger{
		events: makeEvents("alpha", "203.0.113.9", "Googlebot/2.1", models.OutcomeAdmitted, 3),
	}
	// Rejected bot events are already handled, no gap to report
	ledger.events = append(ledger.events, makeEvents("alpha", "198.51.100.7", "curl/8.4.0", models.OutcomeRejected, 4)...)

	d := NewDetector(ledger, tracking.NewBotClassifier(nil), 10)
	findings, err := d.Scan(context.Background(), "", time.Hour)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	gaps := findByKind(findings, models.FindingBotDetected)
	if len(gaps) != 1 {
		t.Fatalf("bot gap findings = %d, want 1: %+v", len(gaps), gaps)
	}
	g := gaps[0]
	if g.Origin != "203.0.113.9" || g.Severity != models.SeverityHigh || g.EventCount != 3 {
		t.Errorf("gap finding = %+v, want 3 admitted googlebot events at high severity", g)
	}
}

func TestScanEmptySignatures(t *testing.T) {
	ledger := &fakeLedger{
		events: makeEvents("alpha", "203.0.113.9", "", models.OutcomeRejected, 11),
	}
	// A single signature-less request is a privacy-hardened reader
	ledger.events = append(ledger.events, makeEvents("alpha", "198.51.100.7", "", models.OutcomeAdmitted, 1)...)

	d := NewDetector(ledger, tracking.NewBotClassifier(nil), 10)
	findings, err := d.Scan(context.Background(), "", time.Hour)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	unusual := findByKind(findings, models.FindingUnusualPattern)
	if len(unusual) != 1 {
		t.Fatalf("unusual pattern findings = %d, want 1: %+v", len(unusual), unusual)
	}
	if unusual[0].Origin != "203.0.113.9" || unusual[0].EventCount != 11 {
		t.Errorf("unusual finding = %+v, want origin 203.0.113.9 with 11 events", unusual[0])
	}
}

func TestScanContentFilter(t *testing.T) {
	browser := "Mozilla/5.0 (X11; Linux x86_64) Firefox/122.0"
	ledger := &fakeLedger{}
	ledger.events = append(ledger.events, makeEvents("alpha", "203.0.113.9", browser, models.OutcomeRejected, 20)...)
	ledger.events = append(ledger.events, makeEvents("beta", "203.0.113.9", browser, models.OutcomeRejected, 20)...)

	d := NewDetector(ledger, tracking.NewBotClassifier(nil), 10)
	findings, err := d.Scan(context.Background(), "alpha", time.Hour)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(findings) != 1 || findings[0].ContentID != "alpha" {
		t.Errorf("findings = %+v, want exactly one for alpha", findings)
	}
}

func TestScanLedgerError(t *testing.T) {
	d := NewDetector(&fakeLedger{err: errors.New("db closed")}, tracking.NewBotClassifier(nil), 10)

	_, err := d.Scan(context.Background(), "", time.Hour)
	if err == nil {
		t.Fatal("expected error when ledger window cannot be loaded")
	}
}
