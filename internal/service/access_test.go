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

func TestStartSession(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)

	started, err := f.core.Access.StartSession(context.Background(), "abc123", operator(" Asha "), "10.0.0.1")
	require.NoError(t, err)

	assert.Regexp(t, tokenPattern, started.Token)
	assert.Equal(t, t0.Add(DefaultSessionTTL), started.ExpiresAt)
	assert.Equal(t, "Booth B1", started.BoothName)
	assert.Equal(t, "B1", started.Operation.BoothID)
	assert.Equal(t, "Asha", started.Operation.OperatorName)
	assert.True(t, started.Operation.IsActive)
	assert.Equal(t, t0, started.Operation.StartedAt)
}

func TestStartSession_SingleOperatorBooth(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ONE111", 1)
	ctx := context.Background()

	a, err := f.core.Access.StartSession(ctx, "ONE111", operator("A"), "10.0.0.1")
	require.NoError(t, err)

	_, err = f.core.Access.StartSession(ctx, "ONE111", operator("B"), "10.0.0.2")
	var admitErr *AdmissionError
	require.ErrorAs(t, err, &admitErr)
	assert.Equal(t, 1, admitErr.Limit)
	assert.ErrorIs(t, err, ErrAdmissionDenied)

	f.clock.Advance(time.Hour)
	_, err = f.core.Access.EndSession(ctx, a.Token)
	require.NoError(t, err)

	b, err := f.core.Access.StartSession(ctx, "ONE111", operator("B"), "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, a.Operation.ID, b.Operation.ID)
	assert.True(t, b.Operation.IsActive)
}

func TestStartSession_OperatorValidatedBeforeCode(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)

	_, err := f.core.Access.StartSession(context.Background(), "ABC123", model.OperatorInfo{}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.store.Attempts(), "invalid operator input must not consume a code attempt")
}

func TestStartSession_BadCode(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)

	_, err := f.core.Access.StartSession(context.Background(), "XYZ999", operator("A"), "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := f.store.CountActiveOperations(context.Background(), "B1")
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestStartSession_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	failN(t, f, attacker, 5)

	_, err := f.core.Access.StartSession(context.Background(), "ABC123", operator("A"), attacker)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 56*time.Minute, rateErr.RetryAfter)
}

func TestStartSession_ReleasesOperationWhenTokenIssueFails(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 1)
	f.store.createSessionErr = errors.New("connection reset")
	ctx := context.Background()

	_, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	active, err := f.store.CountActiveOperations(ctx, "B1")
	require.NoError(t, err)
	assert.Zero(t, active)

	f.store.createSessionErr = nil
	_, err = f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	assert.NoError(t, err)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	ctx := context.Background()

	started, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	require.NoError(t, err)
	f.participants.Add("B1", "visitor", t0.Add(10*time.Minute))

	f.clock.Advance(45 * time.Minute)
	summary, err := f.core.Access.EndSession(ctx, started.Token)
	require.NoError(t, err)
	assert.Equal(t, 45, summary.Duration.TotalMinutes)
	assert.Equal(t, 1, summary.Operation.TotalParticipants)
	assert.False(t, summary.AlreadyClosed)

	_, err = f.core.Access.GetCurrentSession(ctx, started.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.core.Access.EndSession(ctx, started.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndSession_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	ctx := context.Background()

	started, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	require.NoError(t, err)

	f.clock.Set(started.ExpiresAt.Add(time.Minute))
	_, err = f.core.Access.EndSession(ctx, started.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRefreshSession(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	ctx := context.Background()

	started, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	expiresAt, err := f.core.Access.RefreshSession(ctx, started.Token)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Hour+DefaultSessionTTL), expiresAt)

	_, err = f.core.Access.RefreshSession(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCurrentSession(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	ctx := context.Background()

	started, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	require.NoError(t, err)
	f.participants.Add("B1", "student", t0.Add(5*time.Minute))
	f.participants.Add("B1", "faculty", t0.Add(50*time.Minute))

	f.clock.Advance(75*time.Minute + 20*time.Second)
	view, err := f.core.Access.GetCurrentSession(ctx, started.Token)
	require.NoError(t, err)

	assert.Equal(t, "Booth B1", view.BoothName)
	assert.Equal(t, started.Operation.ID, view.Operation.ID)
	assert.Equal(t, model.Duration{Hours: 1, Minutes: 15, TotalMinutes: 75}, view.Elapsed)
	assert.Equal(t, 2, view.CurrentParticipants)
	assert.Equal(t, t0.Add(75*time.Minute+20*time.Second), view.Session.LastActivityAt)
}

func TestGetCurrentSession_AfterForcedEnd(t *testing.T) {
	f := newFixture(t)
	f.addBooth(t, "B1", "ABC123", 3)
	ctx := context.Background()

	started, err := f.core.Access.StartSession(ctx, "ABC123", operator("A"), "10.0.0.1")
	require.NoError(t, err)
	_, err = f.core.Admin.ForceEndOperation(ctx, started.Operation.ID)
	require.NoError(t, err)

	_, err = f.core.Access.GetCurrentSession(ctx, started.Token)
	assert.ErrorIs(t, err, ErrExpired)
}
