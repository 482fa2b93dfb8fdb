// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePurger struct {
	mu     sync.Mutex
	calls  int
	cutoff time.Time
	purged int64
	err    error
}

func (f *fakePurger) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoff = cutoff
	return f.purged, f.err
}

func (f *fakePurger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRetentionPurgeCutoff(t *testing.T) {
	purger := &fakePurger{purged: 3}
	svc := NewRetentionService(purger, 30)

	before := time.Now().UTC().AddDate(0, 0, -30)
	svc.purgeOnce(context.Background())
	after := time.Now().UTC().AddDate(0, 0, -30)

	if purger.calls != 1 {
		t.Fatalf("purger called %d times, want 1", purger.calls)
	}
	if purger.cutoff.Before(before) || purger.cutoff.After(after) {
		t.Errorf("cutoff %v outside expected 30-day horizon [%v, %v]", purger.cutoff, before, after)
	}
}

func TestRetentionPurgeErrorDoesNotPanic(t *testing.T) {
	purger := &fakePurger{err: errors.New("db closed")}
	svc := NewRetentionService(purger, 7)

	svc.purgeOnce(context.Background())

	if purger.calls != 1 {
		t.Fatalf("purger called %d times, want 1", purger.calls)
	}
}

func TestRetentionDisabledIdlesUntilCancel(t *testing.T) {
	purger := &fakePurger{}
	svc := NewRetentionService(purger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if purger.calls != 0 {
		t.Errorf("purger called %d times with retention disabled, want 0", purger.calls)
	}
}

func TestRetentionTickerPurges(t *testing.T) {
	purger := &fakePurger{purged: 1}
	svc := NewRetentionService(purger, 7)
	svc.initialDelay = time.Millisecond
	svc.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for purger.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("purger called %d times, want >= 2", purger.callCount())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestRetentionString(t *testing.T) {
	svc := NewRetentionService(&fakePurger{}, 7)
	if got := svc.String(); got != "retention-janitor" {
		t.Errorf("String() = %q, want %q", got, "retention-janitor")
	}
}
