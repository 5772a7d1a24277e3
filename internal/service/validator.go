package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/metrics"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/google/uuid"
)

// ValidationResult is the outcome of checking a submitted booth code.
type ValidationResult struct {
	IsValid    bool
	BoothID    string
	BoothName  string
	Reason     string
	RetryAfter time.Duration
}

// Err converts an invalid result into its error kind; nil when valid.
func (r ValidationResult) Err() error {
	switch {
	case r.IsValid:
		return nil
	case r.Reason == model.ReasonRateLimited:
		return &RateLimitError{RetryAfter: r.RetryAfter}
	case r.Reason == model.ReasonExpired:
		return ErrExpired
	case r.Reason == model.ReasonInactive:
		return ErrInactive
	default:
		return ErrNotFound
	}
}

// CodeValidator checks submitted booth codes. Every call writes exactly one
// CodeAttempt row, whatever the outcome.
type CodeValidator struct {
	store   repository.Store
	limiter *RateLimiter
	now     func() time.Time
}

// NewCodeValidator constructs a CodeValidator.
func NewCodeValidator(store repository.Store, limiter *RateLimiter) *CodeValidator {
	return &CodeValidator{store: store, limiter: limiter, now: time.Now}
}

// Validate resolves code for a caller at address. Invalid codes are reported
// through the result, not the error; the error is reserved for storage
// failures, including a failure to write the audit row. When storage fails
// mid-check the attempt is still audited as storage_unavailable on a best
// effort basis.
func (v *CodeValidator) Validate(ctx context.Context, code, address string) (ValidationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	attempt := &model.CodeAttempt{
		ID:          uuid.New().String(),
		Code:        code,
		Address:     address,
		AttemptedAt: v.now().UTC(),
	}

	blocked, retryAfter, err := v.limiter.IsBlocked(ctx, address)
	if err != nil {
		v.auditUnavailable(ctx, attempt)
		return ValidationResult{}, err
	}
	if blocked {
		res := ValidationResult{Reason: model.ReasonRateLimited, RetryAfter: retryAfter}
		return res, v.finish(ctx, attempt, res)
	}

	booth, err := v.store.GetBoothByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ValidationResult{Reason: model.ReasonNotFound},
				v.finish(ctx, attempt, ValidationResult{Reason: model.ReasonNotFound})
		}
		v.auditUnavailable(ctx, attempt)
		return ValidationResult{}, storageError("look up booth code", err)
	}

	attempt.BoothID = &booth.ID
	var res ValidationResult
	switch {
	case booth.CodeExpired(attempt.AttemptedAt):
		res = ValidationResult{BoothID: booth.ID, Reason: model.ReasonExpired}
	case !booth.IsActive:
		res = ValidationResult{BoothID: booth.ID, Reason: model.ReasonInactive}
	default:
		res = ValidationResult{IsValid: true, BoothID: booth.ID, BoothName: booth.Name}
	}
	return res, v.finish(ctx, attempt, res)
}

func (v *CodeValidator) finish(ctx context.Context, attempt *model.CodeAttempt, res ValidationResult) error {
	attempt.Success = res.IsValid
	attempt.Reason = res.Reason
	if res.IsValid {
		metrics.CodeValidation("success")
	} else {
		metrics.CodeValidation(res.Reason)
	}
	return v.limiter.RecordAttempt(ctx, attempt)
}

// auditUnavailable records an attempt that could not be checked. The caller is
// already returning a storage error, so a failed write is only logged.
func (v *CodeValidator) auditUnavailable(ctx context.Context, attempt *model.CodeAttempt) {
	attempt.Success = false
	attempt.Reason = model.ReasonStorageUnavailable
	metrics.CodeValidation(attempt.Reason)
	if err := v.limiter.RecordAttempt(ctx, attempt); err != nil {
		slog.Warn("audit code attempt", "address", attempt.Address, "reason", attempt.Reason, "error", err)
	}
}
