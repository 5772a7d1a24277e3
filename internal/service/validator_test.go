package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidCode(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)

	res, err := f.core.Validator.Validate(context.Background(), "ABC123", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "B1", res.BoothID)
	assert.Equal(t, "Booth B1", res.BoothName)
	assert.NoError(t, res.Err())

	attempts := f.store.Attempts()
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Empty(t, attempts[0].Reason)
	require.NotNil(t, attempts[0].BoothID)
	assert.Equal(t, "B1", *attempts[0].BoothID)
	assert.Equal(t, t0, attempts[0].AttemptedAt)
}

func TestValidate_NormalisesInput(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)

	res, err := f.core.Validator.Validate(context.Background(), "  abc123 ", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "ABC123", f.store.Attempts()[0].Code)
}

func TestValidate_UnknownCodeIsRecorded(t *testing.T) {
	f := newFixture(t)

	res, err := f.core.Validator.Validate(context.Background(), "XYZ999", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.ReasonNotFound, res.Reason)
	assert.ErrorIs(t, res.Err(), ErrNotFound)

	attempts := f.store.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "XYZ999", attempts[0].Code)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, model.ReasonNotFound, attempts[0].Reason)
	assert.Nil(t, attempts[0].BoothID)
}

func TestValidate_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	b := f.addBooth(t, "B2", "EXP111", 3)
	yesterday := t0.Add(-24 * time.Hour)
	require.NoError(t, f.store.SetBoothCode(context.Background(), b.ID, b.Code, &yesterday))

	res, err := f.core.Validator.Validate(context.Background(), "EXP111", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.ReasonExpired, res.Reason)
	assert.ErrorIs(t, res.Err(), ErrExpired)

	attempts := f.store.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, model.ReasonExpired, attempts[0].Reason)
	require.NotNil(t, attempts[0].BoothID)
	assert.Equal(t, "B2", *attempts[0].BoothID)
}

func TestValidate_FutureExpiryIsValid(t *testing.T) {
	f := newFixture(t)
	b := f.addBooth(t, "B1", "ABC123", 3)
	tomorrow := t0.Add(24 * time.Hour)
	require.NoError(t, f.store.SetBoothCode(context.Background(), b.ID, b.Code, &tomorrow))

	res, err := f.core.Validator.Validate(context.Background(), "ABC123", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidate_InactiveBooth(t *testing.T) {
	f := newFixture(t)
	code := "OFF000"
	require.NoError(t, f.store.CreateBooth(context.Background(), &model.Booth{
		ID: "B3", Name: "Closed", Code: &code, IsActive: false, MaxOperators: 3,
	}))

	res, err := f.core.Validator.Validate(context.Background(), code, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.ReasonInactive, res.Reason)
	assert.ErrorIs(t, res.Err(), ErrInactive)
}

func TestValidate_AuditFailureFailsTheCall(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	f.store.recordAttemptErr = errors.New("disk full")

	_, err := f.core.Validator.Validate(context.Background(), "ABC123", "10.0.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestValidate_LookupFailureIsStillAudited(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	f.store.boothByCodeErr = errors.New("timeout")

	_, err := f.core.Validator.Validate(context.Background(), "ABC123", "10.0.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	attempts := f.store.Attempts()
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, model.ReasonStorageUnavailable, attempts[0].Reason)
	assert.Equal(t, "ABC123", attempts[0].Code)
	assert.Nil(t, attempts[0].BoothID)
}

func TestValidate_LookupAndAuditBothFailing(t *testing.T) {
	f := newFixture(t)
	f.store.boothByCodeErr = errors.New("timeout")
	f.store.recordAttemptErr = errors.New("timeout")

	_, err := f.core.Validator.Validate(context.Background(), "ABC123", "10.0.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "look up booth code")
	assert.Empty(t, f.store.Attempts())
}
