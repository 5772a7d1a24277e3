package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

const maxCodeExpiryDays = 365

// AdminService is the administrative entry point for booth codes, active
// operators and statistics.
type AdminService struct {
	store     repository.Store
	codes     *CodeGenerator
	lifecycle *OperationLifecycle
	stats     *StatsAggregator
	now       func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(
	store repository.Store,
	codes *CodeGenerator,
	lifecycle *OperationLifecycle,
	stats *StatsAggregator,
) *AdminService {
	return &AdminService{store: store, codes: codes, lifecycle: lifecycle, stats: stats, now: time.Now}
}

// AssignCode gives a booth without a code a fresh one. expiryDays of 0 means
// the code never expires.
func (s *AdminService) AssignCode(ctx context.Context, boothID string, expiryDays int) (string, *time.Time, error) {
	booth, err := s.store.GetBooth(ctx, boothID)
	if err != nil {
		return "", nil, storageError("get booth", err)
	}
	if booth.Code != nil {
		return "", nil, fmt.Errorf("booth %s already has a code, regenerate it instead: %w", boothID, ErrConflict)
	}
	return s.setCode(ctx, boothID, expiryDays)
}

// RegenerateCode replaces a booth's code. The old code stops working
// immediately; sessions already issued are unaffected.
func (s *AdminService) RegenerateCode(ctx context.Context, boothID string, expiryDays int) (string, *time.Time, error) {
	if _, err := s.store.GetBooth(ctx, boothID); err != nil {
		return "", nil, storageError("get booth", err)
	}
	return s.setCode(ctx, boothID, expiryDays)
}

// RevokeCode clears a booth's code.
func (s *AdminService) RevokeCode(ctx context.Context, boothID string) error {
	if err := s.store.SetBoothCode(ctx, boothID, nil, nil); err != nil {
		return storageError("clear booth code", err)
	}
	slog.Info("booth code revoked", "booth_id", boothID)
	return nil
}

func (s *AdminService) setCode(ctx context.Context, boothID string, expiryDays int) (string, *time.Time, error) {
	if expiryDays < 0 || expiryDays > maxCodeExpiryDays {
		return "", nil, validationError("expiry days must be between 0 and %d", maxCodeExpiryDays)
	}

	code, err := s.codes.GenerateUnique(ctx)
	if err != nil {
		return "", nil, err
	}

	var expiresAt *time.Time
	if expiryDays > 0 {
		t := s.now().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour)
		expiresAt = &t
	}
	if err := s.store.SetBoothCode(ctx, boothID, &code, expiresAt); err != nil {
		return "", nil, storageError("assign booth code", err)
	}

	slog.Info("booth code assigned", "booth_id", boothID, "expiry_days", expiryDays)
	return code, expiresAt, nil
}

// Booth returns a booth by id.
func (s *AdminService) Booth(ctx context.Context, boothID string) (*model.Booth, error) {
	booth, err := s.store.GetBooth(ctx, boothID)
	if err != nil {
		return nil, storageError("get booth", err)
	}
	return booth, nil
}

// ListActiveOperators returns the booth's open operations, oldest first.
func (s *AdminService) ListActiveOperators(ctx context.Context, boothID string) ([]model.Operation, error) {
	if _, err := s.store.GetBooth(ctx, boothID); err != nil {
		return nil, storageError("get booth", err)
	}
	ops, err := s.store.ListActiveOperations(ctx, boothID)
	if err != nil {
		return nil, storageError("list active operations", err)
	}
	if ops == nil {
		ops = []model.Operation{}
	}
	return ops, nil
}

// GetOperationStats summarises operations for one booth, or all booths when
// boothID is empty.
func (s *AdminService) GetOperationStats(ctx context.Context, boothID string) (*model.StatsSummary, error) {
	return s.stats.Summary(ctx, boothID)
}

// ForceEndOperation closes an operation without its session token, e.g. when
// an operator walks away without signing out. Any session bound to it becomes
// invalid on its next use.
func (s *AdminService) ForceEndOperation(ctx context.Context, operationID string) (*model.OperationSummary, error) {
	return s.lifecycle.End(ctx, operationID)
}
