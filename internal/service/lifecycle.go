package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Shivanand-hulikatti/booth-access/internal/metrics"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/google/uuid"
)

const (
	maxOperatorNameLen = 100
	minContactDigits   = 10
)

// OperationLifecycle starts and ends operator tenures at booths.
type OperationLifecycle struct {
	store        repository.Store
	admission    *AdmissionController
	participants repository.ParticipantCounter
	stats        *StatsAggregator
	now          func() time.Time
}

// NewOperationLifecycle constructs an OperationLifecycle.
func NewOperationLifecycle(
	store repository.Store,
	admission *AdmissionController,
	participants repository.ParticipantCounter,
	stats *StatsAggregator,
) *OperationLifecycle {
	return &OperationLifecycle{
		store:        store,
		admission:    admission,
		participants: participants,
		stats:        stats,
		now:          time.Now,
	}
}

// ValidateOperator normalises and checks operator input.
func ValidateOperator(info model.OperatorInfo) (model.OperatorInfo, error) {
	info.Name = strings.TrimSpace(info.Name)
	info.Contact = strings.TrimSpace(info.Contact)
	if info.Name == "" {
		return info, validationError("operator name is required")
	}
	if len([]rune(info.Name)) > maxOperatorNameLen {
		return info, validationError("operator name cannot exceed %d characters", maxOperatorNameLen)
	}
	if info.Contact != "" && countDigits(info.Contact) < minContactDigits {
		return info, validationError("operator contact must contain at least %d digits", minContactDigits)
	}
	return info, nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// Start opens a new active operation on boothID if the booth has room.
func (l *OperationLifecycle) Start(ctx context.Context, boothID string, info model.OperatorInfo) (*model.Operation, error) {
	info, err := ValidateOperator(info)
	if err != nil {
		return nil, err
	}
	if boothID == "" {
		return nil, validationError("booth id is required")
	}

	op := &model.Operation{
		ID:              uuid.New().String(),
		BoothID:         boothID,
		OperatorName:    info.Name,
		OperatorContact: info.Contact,
		StartedAt:       l.now().UTC(),
		IsActive:        true,
	}
	if err := l.admission.Admit(ctx, op); err != nil {
		return nil, err
	}

	slog.Info("operation started", "operation_id", op.ID, "booth_id", boothID, "operator", op.OperatorName)
	return op, nil
}

// End closes an operation. Ending an operation that is already closed, or
// losing a race against a concurrent End, succeeds with the stored result.
func (l *OperationLifecycle) End(ctx context.Context, operationID string) (*model.OperationSummary, error) {
	op, err := l.store.GetOperation(ctx, operationID)
	if err != nil {
		return nil, storageError("get operation", err)
	}
	if !op.IsActive {
		return closedSummary(op), nil
	}

	endedAt := l.now().UTC()
	if endedAt.Before(op.StartedAt) {
		endedAt = op.StartedAt
	}
	byCategory, err := l.participants.CountParticipants(ctx, op.BoothID, op.StartedAt, endedAt)
	if err != nil {
		return nil, storageError("count participants", err)
	}
	delta := l.stats.Delta(op, endedAt, byCategory)

	won, err := l.store.CloseOperation(ctx, op.ID, endedAt, delta.TotalParticipants, delta)
	if err != nil {
		return nil, storageError("close operation", err)
	}
	if !won {
		current, err := l.store.GetOperation(ctx, operationID)
		if err != nil {
			return nil, storageError("get operation", err)
		}
		return closedSummary(current), nil
	}

	op.EndedAt = &endedAt
	op.IsActive = false
	op.TotalParticipants = delta.TotalParticipants
	summary := &model.OperationSummary{
		Operation:              *op,
		Duration:               model.NewDuration(op.StartedAt, endedAt),
		ParticipantsByCategory: byCategory,
	}
	metrics.OperationClosed(summary.Duration.TotalMinutes, op.TotalParticipants)
	slog.Info("operation ended",
		"operation_id", op.ID,
		"booth_id", op.BoothID,
		"minutes", summary.Duration.TotalMinutes,
		"participants", op.TotalParticipants,
	)
	return summary, nil
}

func closedSummary(op *model.Operation) *model.OperationSummary {
	s := &model.OperationSummary{Operation: *op, AlreadyClosed: true}
	if op.EndedAt != nil {
		s.Duration = model.NewDuration(op.StartedAt, *op.EndedAt)
	}
	return s
}
