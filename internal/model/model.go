// Package model defines the core domain types for booth access and operator sessions.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxOperators is the concurrency limit applied to booths created
// without an explicit limit.
const DefaultMaxOperators = 3

// Booth is a physical location operators gain access to with a shared code.
type Booth struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Code          *string    `json:"code,omitempty"`
	CodeExpiresAt *time.Time `json:"code_expires_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	MaxOperators  int        `json:"max_operators"`
}

// CodeExpired reports whether the booth's code has a set expiry in the past.
func (b *Booth) CodeExpired(now time.Time) bool {
	return b.CodeExpiresAt != nil && b.CodeExpiresAt.Before(now)
}

// Operation is one operator's continuous tenure at a booth.
// IsActive is true exactly while EndedAt is nil.
type Operation struct {
	ID                string     `json:"id"`
	BoothID           string     `json:"booth_id"`
	OperatorName      string     `json:"operator_name"`
	OperatorContact   string     `json:"operator_contact,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	IsActive          bool       `json:"is_active"`
	TotalParticipants int        `json:"total_participants"`
}

// Session is a bearer credential bound to one operation.
type Session struct {
	ID             string    `json:"id"`
	Token          string    `json:"-"`
	OperationID    string    `json:"operation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Address        string    `json:"address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether now is strictly after the session's expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Attempt failure reasons recorded on CodeAttempt rows.
const (
	ReasonRateLimited = "rate_limited"
	ReasonNotFound    = "not_found"
	ReasonExpired     = "expired"
	ReasonInactive    = "inactive"

	ReasonStorageUnavailable = "storage_unavailable"
)

// CodeAttempt is one audited code submission.
type CodeAttempt struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Address     string    `json:"address"`
	AttemptedAt time.Time `json:"attempted_at"`
	Success     bool      `json:"success"`
	BoothID     *string   `json:"booth_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// DailyStat is the per-booth, per-day rollup of closed operations.
type DailyStat struct {
	BoothID                string          `json:"booth_id"`
	Date                   string          `json:"date"` // YYYY-MM-DD
	ParticipantsByCategory map[string]int  `json:"participants_by_category"`
	TotalParticipants      int             `json:"total_participants"`
	OperatorCount          int             `json:"operator_count"`
	TotalMinutes           int             `json:"total_minutes"`
	TotalHours             decimal.Decimal `json:"total_hours"`
}

// DailyStatDelta is the increment folded into a DailyStat when an operation closes.
type DailyStatDelta struct {
	BoothID                string
	Date                   string
	ParticipantsByCategory map[string]int
	TotalParticipants      int
	Minutes                int
	Hours                  decimal.Decimal
}

// Apply adds the delta to the stat in place.
func (s *DailyStat) Apply(d DailyStatDelta) {
	if s.ParticipantsByCategory == nil {
		s.ParticipantsByCategory = make(map[string]int)
	}
	for category, n := range d.ParticipantsByCategory {
		s.ParticipantsByCategory[category] += n
	}
	s.TotalParticipants += d.TotalParticipants
	s.OperatorCount++
	s.TotalMinutes += d.Minutes
	s.TotalHours = s.TotalHours.Add(d.Hours)
}

// OperationTotals aggregates operation rows for the admin stats view.
type OperationTotals struct {
	Total             int `json:"total"`
	Active            int `json:"active"`
	Closed            int `json:"closed"`
	TotalParticipants int `json:"total_participants"`
	TotalMinutes      int `json:"total_minutes"`
}

// Duration is an elapsed time truncated to whole minutes.
type Duration struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	TotalMinutes int `json:"total_minutes"`
}

// NewDuration floors end-start to whole minutes.
func NewDuration(start, end time.Time) Duration {
	total := int(end.Sub(start) / time.Minute)
	if total < 0 {
		total = 0
	}
	return Duration{Hours: total / 60, Minutes: total % 60, TotalMinutes: total}
}

// OperatorInfo is what an operator supplies when starting a session.
type OperatorInfo struct {
	Name    string `json:"operator_name"`
	Contact string `json:"operator_contact"`
}

// OperationSummary is returned when an operation closes.
type OperationSummary struct {
	Operation              Operation      `json:"operation"`
	Duration               Duration       `json:"duration"`
	ParticipantsByCategory map[string]int `json:"participants_by_category,omitempty"`
	AlreadyClosed          bool           `json:"already_closed"`
}

// SessionView is the current state of an operator's session.
type SessionView struct {
	Session             Session   `json:"session"`
	Operation           Operation `json:"operation"`
	BoothName           string    `json:"booth_name"`
	Elapsed             Duration  `json:"elapsed"`
	CurrentParticipants int       `json:"current_participants"`
}

// StartedSession is returned from a successful session start.
type StartedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Operation Operation `json:"operation"`
	BoothName string    `json:"booth_name"`
}

// StatsSummary is the administrative statistics view.
type StatsSummary struct {
	BoothID        string          `json:"booth_id,omitempty"`
	Operations     OperationTotals `json:"operations"`
	AverageMinutes int             `json:"average_minutes"`
	TotalHours     decimal.Decimal `json:"total_hours"`
	Daily          []DailyStat     `json:"daily"`
}

// ─── HTTP payloads ────────────────────────────────────────────────────────────

// StartSessionRequest is the payload for starting an operator session.
type StartSessionRequest struct {
	Code            string `json:"code"`
	OperatorName    string `json:"operator_name"`
	OperatorContact string `json:"operator_contact"`
}

// AssignCodeRequest is the payload for assigning or regenerating a booth code.
type AssignCodeRequest struct {
	ExpiryDays int `json:"expiry_days"`
}

// CodeResponse carries a freshly assigned booth code.
type CodeResponse struct {
	BoothID   string     `json:"booth_id"`
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
