package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

// Default brute-force policy: five failures per address per trailing hour.
const (
	DefaultRateLimitWindow      = time.Hour
	DefaultRateLimitMaxFailures = 5
)

// FailureCounter tracks failed code attempts per source address.
type FailureCounter interface {
	RecordFailure(ctx context.Context, address string, at time.Time) error
	// Failures counts failures strictly after since and returns the time of
	// the failure nth places back from the newest (0 is the newest).
	Failures(ctx context.Context, address string, since time.Time, nth int) (int, time.Time, error)
}

// storeFailures counts failures straight from the CodeAttempt log, which the
// rate limiter already writes, so RecordFailure has nothing to do.
type storeFailures struct {
	store repository.Store
}

func (s storeFailures) RecordFailure(context.Context, string, time.Time) error { return nil }

func (s storeFailures) Failures(ctx context.Context, address string, since time.Time, nth int) (int, time.Time, error) {
	return s.store.FailedAttempts(ctx, address, since, nth)
}

// RateLimiter records code attempts and decides whether an address is blocked.
type RateLimiter struct {
	store       repository.Store
	failures    FailureCounter
	window      time.Duration
	maxFailures int
	now         func() time.Time
}

// NewRateLimiter constructs a RateLimiter. A nil counter counts failures from
// the CodeAttempt log; non-positive limits fall back to the defaults.
func NewRateLimiter(store repository.Store, counter FailureCounter, window time.Duration, maxFailures int) *RateLimiter {
	if counter == nil {
		counter = storeFailures{store: store}
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if maxFailures <= 0 {
		maxFailures = DefaultRateLimitMaxFailures
	}
	return &RateLimiter{
		store:       store,
		failures:    counter,
		window:      window,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// RecordAttempt appends the attempt to the audit log and, for failures,
// feeds the failure counter.
func (l *RateLimiter) RecordAttempt(ctx context.Context, attempt *model.CodeAttempt) error {
	if err := l.store.RecordAttempt(ctx, attempt); err != nil {
		return storageError("record code attempt", err)
	}
	if attempt.Success {
		return nil
	}
	if err := l.failures.RecordFailure(ctx, attempt.Address, attempt.AttemptedAt); err != nil {
		return fmt.Errorf("record failure: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// IsBlocked reports whether address has reached the failure threshold within
// the trailing window, and how long the caller must wait before an attempt
// is admitted again.
//
// The blocked attempt is itself recorded as a failure, so the wait runs until
// only maxFailures-1 failures remain in the window counting that one: the
// (maxFailures-1)th newest existing failure must age out.
func (l *RateLimiter) IsBlocked(ctx context.Context, address string) (bool, time.Duration, error) {
	now := l.now()
	nth := l.maxFailures - 2
	if nth < 0 {
		nth = 0
	}
	count, pivot, err := l.failures.Failures(ctx, address, now.Add(-l.window), nth)
	if err != nil {
		return false, 0, storageError("count failed attempts", err)
	}
	if count < l.maxFailures {
		return false, 0, nil
	}

	retryAfter := l.window
	if l.maxFailures > 1 {
		retryAfter = pivot.Add(l.window).Sub(now)
	}
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	slog.Warn("code attempts blocked", "address", address, "failures", count, "retry_after", retryAfter)
	return true, retryAfter, nil
}
