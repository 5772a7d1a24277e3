package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/metrics"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/google/uuid"
)

// Session lifetimes. DefaultSessionTTL is the primary policy; ShiftSessionTTL
// is the stricter one-shift alternative selectable through configuration.
const (
	DefaultSessionTTL = 24 * time.Hour
	ShiftSessionTTL   = 8 * time.Hour
	TokenLength       = 64
)

// ResolvedSession is a live session joined with its operation and booth.
type ResolvedSession struct {
	Session   model.Session
	Operation model.Operation
	Booth     model.Booth
}

// SessionManager issues and validates operator bearer tokens. It owns only
// the token's existence; closing the bound operation is the caller's job.
type SessionManager struct {
	store  repository.Store
	ttl    time.Duration
	random io.Reader
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager. ttl <= 0 uses DefaultSessionTTL.
func NewSessionManager(store repository.Store, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, ttl: ttl, now: time.Now}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue creates a session bound to operationID and returns it with its token.
func (m *SessionManager) Issue(ctx context.Context, operationID, address string) (*model.Session, error) {
	token, err := randomString(m.random, alphanumeric, TokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := m.now().UTC()
	sess := &model.Session{
		ID:             uuid.New().String(),
		Token:          token,
		OperationID:    operationID,
		ExpiresAt:      now.Add(m.ttl),
		LastActivityAt: now,
		Address:        address,
		CreatedAt:      now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, storageError("create session", err)
	}
	metrics.SessionEvent("issued")
	return sess, nil
}

// Resolve validates token and records activity on it. Expired sessions, and
// sessions whose operation has closed, are deleted and reported as ErrExpired.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*ResolvedSession, error) {
	if token == "" {
		return nil, fmt.Errorf("session token: %w", ErrNotFound)
	}
	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, storageError("get session", err)
	}

	now := m.now().UTC()
	if sess.Expired(now) {
		m.discard(ctx, sess, "expired")
		return nil, fmt.Errorf("session expired at %s: %w", sess.ExpiresAt.Format(time.RFC3339), ErrExpired)
	}

	op, err := m.store.GetOperation(ctx, sess.OperationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.discard(ctx, sess, "orphaned")
			return nil, fmt.Errorf("session operation: %w", ErrNotFound)
		}
		return nil, storageError("get operation", err)
	}
	if !op.IsActive {
		m.discard(ctx, sess, "operation_closed")
		return nil, fmt.Errorf("session operation has ended: %w", ErrExpired)
	}

	booth, err := m.store.GetBooth(ctx, op.BoothID)
	if err != nil {
		return nil, storageError("get booth", err)
	}

	if err := m.store.TouchSession(ctx, token, now); err != nil {
		return nil, storageError("touch session", err)
	}
	if now.After(sess.LastActivityAt) {
		sess.LastActivityAt = now
	}
	return &ResolvedSession{Session: *sess, Operation: *op, Booth: *booth}, nil
}

// Refresh extends a live session to now + TTL. Expiry never moves backwards.
func (m *SessionManager) Refresh(ctx context.Context, token string) (*model.Session, error) {
	resolved, err := m.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	expiresAt, err := m.store.ExtendSession(ctx, token, now.Add(m.ttl), now)
	if err != nil {
		return nil, storageError("extend session", err)
	}
	sess := resolved.Session
	sess.ExpiresAt = expiresAt
	metrics.SessionEvent("refreshed")
	return &sess, nil
}

// Revoke deletes the session. The bound operation is left untouched.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return storageError("delete session", err)
	}
	metrics.SessionEvent("revoked")
	return nil
}

// discard removes a session that can no longer be used. A failed delete is
// logged and left to the janitor; the session is already unusable.
func (m *SessionManager) discard(ctx context.Context, sess *model.Session, reason string) {
	metrics.SessionEvent(reason)
	if err := m.store.DeleteSession(ctx, sess.Token); err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("failed to delete stale session", "session_id", sess.ID, "reason", reason, "error", err)
		return
	}
	slog.Info("stale session removed", "session_id", sess.ID, "reason", reason)
}
