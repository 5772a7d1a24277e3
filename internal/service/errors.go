package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

// Error kinds surfaced to callers. Match them with errors.Is.
var (
	// ErrValidation is malformed or missing input. Not retryable.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited means the source address exceeded its failed-attempt budget.
	ErrRateLimited = errors.New("too many failed attempts")
	// ErrNotFound means a code, id or token did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrExpired means a code or session is past its validity window.
	ErrExpired = errors.New("expired")
	// ErrInactive means the booth behind a valid code is switched off.
	ErrInactive = errors.New("booth is inactive")
	// ErrAdmissionDenied means the booth is at operator capacity.
	ErrAdmissionDenied = errors.New("booth is at operator capacity")
	// ErrConflict means a booth code is already held by another booth.
	ErrConflict = errors.New("conflict")
	// ErrStorageUnavailable is a transient storage failure; callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// RateLimitError is returned when an address is blocked.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// AdmissionError is returned when a booth already has Limit active operators.
type AdmissionError struct {
	BoothID string
	Limit   int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s (limit %d)", ErrAdmissionDenied, e.Limit)
}

func (e *AdmissionError) Unwrap() error { return ErrAdmissionDenied }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageError translates a repository error into a service error kind.
// Anything that is not a known domain condition is treated as transient.
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrCodeConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
}
