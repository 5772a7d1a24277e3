// Package service implements booth access: code generation and validation,
// brute-force rate limiting, operator admission, the operation lifecycle,
// operator sessions and daily statistics.
package service

import (
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

// Options tunes the access policy. Zero values select the defaults.
type Options struct {
	SessionTTL           time.Duration
	RateLimitWindow      time.Duration
	RateLimitMaxFailures int
	CodeAttempts         int
	StatsLocation        *time.Location
	// FailureCounter overrides the CodeAttempt-log failure count, e.g. with
	// a Redis window shared across instances.
	FailureCounter FailureCounter
	// Now overrides the clock; tests use it to move time.
	Now func() time.Time
}

// Core wires every component over one store and one clock.
type Core struct {
	Codes     *CodeGenerator
	Limiter   *RateLimiter
	Validator *CodeValidator
	Admission *AdmissionController
	Lifecycle *OperationLifecycle
	Sessions  *SessionManager
	Stats     *StatsAggregator
	Access    *AccessService
	Admin     *AdminService
}

// New builds a Core.
func New(store repository.Store, participants repository.ParticipantCounter, opts Options) *Core {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Core{}
	c.Codes = NewCodeGenerator(store, opts.CodeAttempts)
	c.Limiter = NewRateLimiter(store, opts.FailureCounter, opts.RateLimitWindow, opts.RateLimitMaxFailures)
	c.Validator = NewCodeValidator(store, c.Limiter)
	c.Admission = NewAdmissionController(store)
	c.Stats = NewStatsAggregator(store, opts.StatsLocation)
	c.Lifecycle = NewOperationLifecycle(store, c.Admission, participants, c.Stats)
	c.Sessions = NewSessionManager(store, opts.SessionTTL)
	c.Access = NewAccessService(c.Validator, c.Lifecycle, c.Sessions, participants)
	c.Admin = NewAdminService(store, c.Codes, c.Lifecycle, c.Stats)

	c.Codes.now = now
	c.Limiter.now = now
	c.Validator.now = now
	c.Lifecycle.now = now
	c.Sessions.now = now
	c.Access.now = now
	c.Admin.now = now
	return c
}
