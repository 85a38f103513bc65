// Package ratelimit gates outbound sends against per-connection daily and
// monthly caps.
package ratelimit

import (
	"context"
	"errors"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

// ErrLimitExceeded is returned by RecordSent when a cap was reached
// between the authorize check and the increment.
var ErrLimitExceeded = errors.New("message limit exceeded")

// Rejection reasons surfaced by Authorize.
const (
	ReasonDailyLimit   = "Daily message limit exceeded"
	ReasonMonthlyLimit = "Monthly message limit exceeded"
	ReasonOK           = "OK"
)

type Limiter struct {
	store store.Store
}

func NewLimiter(s store.Store) *Limiter {
	return &Limiter{store: s}
}

// Authorize reports whether the connection may send another message right
// now. It never errors; a denied send carries a human-readable reason.
func (l *Limiter) Authorize(conn *models.Connection) (bool, string) {
	if conn.DailySent >= conn.DailyLimit {
		return false, ReasonDailyLimit
	}
	if conn.MonthlySent >= conn.MonthlyLimit {
		return false, ReasonMonthlyLimit
	}
	return true, ReasonOK
}

// RecordSent charges one message against both counters. The increment is
// a single conditional update re-validating the caps, so concurrent
// senders cannot overshoot the limits.
func (l *Limiter) RecordSent(ctx context.Context, connectionID string) error {
	ok, err := l.store.TryIncrementSendCounters(ctx, connectionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimitExceeded
	}
	return nil
}

// ResetDaily zeroes the daily counter on every connection. Invoked by the
// scheduler at local midnight.
func (l *Limiter) ResetDaily(ctx context.Context) error {
	return l.store.ResetDailyCounters(ctx)
}

// ResetMonthly zeroes the monthly counter on every connection. Invoked by
// the scheduler on the 1st of each month.
func (l *Limiter) ResetMonthly(ctx context.Context) error {
	return l.store.ResetMonthlyCounters(ctx)
}
