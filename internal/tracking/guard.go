// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// LedgerHistory is the slice of the ledger the guard reads. Both queries
// look only at admitted events: rejections never consume rate budget and
// never move the cooldown anchor.
type LedgerHistory interface {
	CountAdmittedEvents(ctx context.Context, contentID, origin string, since time.Time) (int64, error)
	LastAdmittedEventAt(ctx context.Context, contentID, origin string) (time.Time, error)
}

// Decision is the guard's verdict for one attempt.
type Decision struct {
	Admitted bool
	Reason   string
}

// AbuseGuard enforces the per-(content, origin) rate and cooldown rules
// against ledger history. Decisions are a pure function of that history
// plus the current time; the only in-memory state is a token-bucket
// pre-filter that can reject floods early but never admits on its own.
type AbuseGuard struct {
	history   LedgerHistory
	threshold int64
	window    time.Duration
	cooldown  time.Duration

	burstRPS  float64
	burstSize int
	limiters  sync.Map // origin -> *rate.Limiter
}

// NewAbuseGuard builds a guard from tracking config.
func NewAbuseGuard(history LedgerHistory, cfg *config.TrackingConfig) *AbuseGuard {
	return &AbuseGuard{
		history:   history,
		threshold: int64(cfg.RateLimitThreshold),
		window:    cfg.RateLimitWindow,
		cooldown:  cfg.CooldownWindow,
		burstRPS:  cfg.OriginBurstRPS,
		burstSize: cfg.OriginBurstSize,
	}
}

// Admit decides whether one view attempt passes the rate and cooldown
// checks. Any ledger query error fails closed: the attempt is rejected and
// the error is returned so the caller can surface a storage fault instead
// of a rejection.
func (g *AbuseGuard) Admit(ctx context.Context, contentID, origin string, now time.Time) (Decision, error) {
	// The pre-filter sheds hot-loop floods without a ledger round trip.
	// It only ever tightens: passing it proves nothing, failing it is
	// already more traffic than the hourly budget allows.
	if g.burstRPS > 0 && !g.originLimiter(origin).Allow() {
		metrics.PrefilterRejections.Inc()
		return Decision{Admitted: false, Reason: models.ReasonRateLimitExceeded}, nil
	}

	count, err := g.history.CountAdmittedEvents(ctx, contentID, origin, now.Add(-g.window))
	if err != nil {
		return Decision{Admitted: false}, fmt.Errorf("rate check failed: %w", err)
	}
	if count >= g.threshold {
		return Decision{Admitted: false, Reason: models.ReasonRateLimitExceeded}, nil
	}

	if g.cooldown > 0 {
		last, err := g.history.LastAdmittedEventAt(ctx, contentID, origin)
		if err != nil {
			return Decision{Admitted: false}, fmt.Errorf("cooldown check failed: %w", err)
		}
		if !last.IsZero() && now.Sub(last) < g.cooldown {
			return Decision{Admitted: false, Reason: models.ReasonCooldownActive}, nil
		}
	}

	return Decision{Admitted: true}, nil
}

// originLimiter returns the token bucket for an origin, creating it on
// first sight.
func (g *AbuseGuard) originLimiter(origin string) *rate.Limiter {
	if l, ok := g.limiters.Load(origin); ok {
		if limiter, lok := l.(*rate.Limiter); lok {
			return limiter
		}
	}
	limiter := rate.NewLimiter(rate.Limit(g.burstRPS), g.burstSize)
	actual, _ := g.limiters.LoadOrStore(origin, limiter)
	if l, ok := actual.(*rate.Limiter); ok {
		return l
	}
	return limiter
}
