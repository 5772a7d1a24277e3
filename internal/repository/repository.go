// Package repository implements persistence for booths, operations, sessions,
// code attempts and daily statistics. PostgresStore uses pgx directly (no ORM);
// MemoryStore satisfies the same contract for local development and tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrCodeConflict is returned when a booth code is already held by another booth.
var ErrCodeConflict = errors.New("booth code already in use")

// ErrAtCapacity is returned when a booth already has its maximum number of
// active operations.
var ErrAtCapacity = errors.New("booth is at operator capacity")

// CapacityError carries the limit that rejected an insert. It matches
// ErrAtCapacity with errors.Is.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s (limit %d)", ErrAtCapacity, e.Limit)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrAtCapacity
}

// Store is the durable storage contract consumed by the service layer.
// Implementations must be safe for concurrent use and must enforce the
// multi-row invariants (code uniqueness, admission capacity, single-winner
// close) themselves.
type Store interface {
	// Booths
	CreateBooth(ctx context.Context, booth *model.Booth) error
	GetBooth(ctx context.Context, id string) (*model.Booth, error)
	GetBoothByCode(ctx context.Context, code string) (*model.Booth, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// SetBoothCode assigns (or with a nil code clears) a booth's code.
	// Returns ErrCodeConflict if another booth holds the code.
	SetBoothCode(ctx context.Context, boothID string, code *string, expiresAt *time.Time) error

	// Code attempts
	RecordAttempt(ctx context.Context, attempt *model.CodeAttempt) error
	// FailedAttempts counts failed attempts from address strictly after since
	// and returns the time of the one nth places back from the newest (0 is
	// the newest), or the zero time when fewer than nth+1 were counted.
	FailedAttempts(ctx context.Context, address string, since time.Time, nth int) (int, time.Time, error)

	// Operations
	CountActiveOperations(ctx context.Context, boothID string) (int, error)
	// InsertOperationIfCapacity re-checks the booth's active count and inserts
	// atomically. Returns ErrNotFound or a *CapacityError.
	InsertOperationIfCapacity(ctx context.Context, op *model.Operation) error
	GetOperation(ctx context.Context, id string) (*model.Operation, error)
	ListActiveOperations(ctx context.Context, boothID string) ([]model.Operation, error)
	// CloseOperation transitions an active operation to closed and folds delta
	// into the daily rollup in one step. It returns false without error when
	// the operation was already closed.
	CloseOperation(ctx context.Context, id string, endedAt time.Time, totalParticipants int, delta model.DailyStatDelta) (bool, error)
	OperationTotals(ctx context.Context, boothID string) (model.OperationTotals, error)
	ListDailyStats(ctx context.Context, boothID string) ([]model.DailyStat, error)

	// Sessions
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	// ExtendSession moves expires_at forward (never backward) and returns the
	// resulting expiry.
	ExtendSession(ctx context.Context, token string, expiresAt, at time.Time) (time.Time, error)
	DeleteSession(ctx context.Context, token string) error
}

// ParticipantCounter reads the external participant-registration store.
type ParticipantCounter interface {
	// CountParticipants returns registrations per category for boothID in [from, to).
	CountParticipants(ctx context.Context, boothID string, from, to time.Time) (map[string]int, error)
}
