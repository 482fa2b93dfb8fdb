// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package models

import "testing"

func TestFormatViewCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{999949, "999.9K"},
		{1000000, "1.0M"},
		{2500000, "2.5M"},
		{1234567890, "1234.6M"},
	}

	for _, tt := range tests {
		if got := FormatViewCount(tt.in); got != tt.want {
			t.Errorf("FormatViewCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewViewEventDefaults(t *testing.T) {
	ev := NewViewEvent("alpha", "203.0.113.9", "Mozilla/5.0", "")

	if ev.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a generated event ID")
	}
	if ev.Referrer != ReferrerDirect {
		t.Errorf("expected empty referrer to default to %q, got %q", ReferrerDirect, ev.Referrer)
	}
	if ev.Metadata != "{}" {
		t.Errorf("expected empty metadata object, got %q", ev.Metadata)
	}
	if ev.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	ev.Rejected(ReasonBotDetected)
	if ev.Outcome != OutcomeRejected || ev.Reason != ReasonBotDetected {
		t.Errorf("Rejected() = outcome %q reason %q", ev.Outcome, ev.Reason)
	}

	ev.Admitted()
	if ev.Outcome != OutcomeAdmitted || ev.Reason != "" {
		t.Errorf("Admitted() = outcome %q reason %q, want admitted with empty reason", ev.Outcome, ev.Reason)
	}
}
