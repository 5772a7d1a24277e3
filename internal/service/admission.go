package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Shivanand-hulikatti/booth-access/internal/metrics"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
)

// AdmissionController enforces each booth's maxOperators limit.
type AdmissionController struct {
	store repository.Store
}

// NewAdmissionController constructs an AdmissionController.
func NewAdmissionController(store repository.Store) *AdmissionController {
	return &AdmissionController{store: store}
}

// CanAdmit reports whether the booth currently has room for another operator.
// The answer is advisory; Admit re-checks atomically with the insert.
func (a *AdmissionController) CanAdmit(ctx context.Context, boothID string) (bool, error) {
	booth, err := a.store.GetBooth(ctx, boothID)
	if err != nil {
		return false, storageError("get booth", err)
	}
	active, err := a.store.CountActiveOperations(ctx, boothID)
	if err != nil {
		return false, storageError("count active operations", err)
	}
	return active < booth.MaxOperators, nil
}

// Admit inserts op if its booth is below capacity at commit time.
func (a *AdmissionController) Admit(ctx context.Context, op *model.Operation) error {
	err := a.store.InsertOperationIfCapacity(ctx, op)
	if err == nil {
		metrics.Admission("admitted")
		return nil
	}

	var capErr *repository.CapacityError
	if errors.As(err, &capErr) {
		metrics.Admission("denied")
		slog.Info("admission denied", "booth_id", op.BoothID, "limit", capErr.Limit)
		return &AdmissionError{BoothID: op.BoothID, Limit: capErr.Limit}
	}
	return storageError("insert operation", err)
}
