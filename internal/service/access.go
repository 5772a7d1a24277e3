package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

// AccessService is the operator-facing entry point: start, end, refresh and
// inspect a session. UI and transport layers call only these methods.
type AccessService struct {
	validator    *CodeValidator
	lifecycle    *OperationLifecycle
	sessions     *SessionManager
	participants repository.ParticipantCounter
	now          func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(
	validator *CodeValidator,
	lifecycle *OperationLifecycle,
	sessions *SessionManager,
	participants repository.ParticipantCounter,
) *AccessService {
	return &AccessService{
		validator:    validator,
		lifecycle:    lifecycle,
		sessions:     sessions,
		participants: participants,
		now:          time.Now,
	}
}

// StartSession admits an operator to the booth owning code and issues a token.
func (s *AccessService) StartSession(ctx context.Context, code string, info model.OperatorInfo, address string) (*model.StartedSession, error) {
	info, err := ValidateOperator(info)
	if err != nil {
		return nil, err
	}

	res, err := s.validator.Validate(ctx, code, address)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("booth code: %w", err)
	}

	op, err := s.lifecycle.Start(ctx, res.BoothID, info)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Issue(ctx, op.ID, address)
	if err != nil {
		// Without a token nobody can end this operation, so release the slot.
		if _, endErr := s.lifecycle.End(ctx, op.ID); endErr != nil {
			slog.Error("failed to release operation after session issue failure",
				"operation_id", op.ID, "error", endErr)
		}
		return nil, err
	}

	return &model.StartedSession{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Operation: *op,
		BoothName: res.BoothName,
	}, nil
}

// EndSession closes the operation bound to token and revokes the token.
func (s *AccessService) EndSession(ctx context.Context, token string) (*model.OperationSummary, error) {
	resolved, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	summary, err := s.lifecycle.End(ctx, resolved.Operation.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Revoke(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("failed to revoke session after end", "operation_id", resolved.Operation.ID, "error", err)
	}
	return summary, nil
}

// RefreshSession extends token's validity and returns the new expiry.
// Success is a nil error.
func (s *AccessService) RefreshSession(ctx context.Context, token string) (time.Time, error) {
	sess, err := s.sessions.Refresh(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	return sess.ExpiresAt, nil
}

// GetCurrentSession describes the live session behind token, including
// participants registered at the booth since the operation started.
func (s *AccessService) GetCurrentSession(ctx context.Context, token string) (*model.SessionView, error) {
	resolved, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	byCategory, err := s.participants.CountParticipants(ctx, resolved.Operation.BoothID, resolved.Operation.StartedAt, now)
	if err != nil {
		return nil, storageError("count participants", err)
	}
	current := 0
	for _, n := range byCategory {
		current += n
	}

	return &model.SessionView{
		Session:             resolved.Session,
		Operation:           resolved.Operation,
		BoothName:           resolved.Booth.Name,
		Elapsed:             model.NewDuration(resolved.Operation.StartedAt, now),
		CurrentParticipants: current,
	}, nil
}
