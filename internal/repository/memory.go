package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
)

// MemoryStore is an in-process Store. A single mutex serialises every call,
// which gives the same atomicity guarantees the Postgres transactions do.
type MemoryStore struct {
	mu       sync.Mutex
	booths   map[string]*model.Booth
	codes    map[string]string // code -> booth id
	ops      map[string]*model.Operation
	sessions map[string]*model.Session // token -> session
	attempts []model.CodeAttempt
	stats    map[string]*model.DailyStat // booth|date -> stat
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		booths:   make(map[string]*model.Booth),
		codes:    make(map[string]string),
		ops:      make(map[string]*model.Operation),
		sessions: make(map[string]*model.Session),
		stats:    make(map[string]*model.DailyStat),
	}
}

func copyBooth(b *model.Booth) *model.Booth {
	c := *b
	if b.Code != nil {
		code := *b.Code
		c.Code = &code
	}
	if b.CodeExpiresAt != nil {
		t := *b.CodeExpiresAt
		c.CodeExpiresAt = &t
	}
	return &c
}

func copyOperation(op *model.Operation) *model.Operation {
	c := *op
	if op.EndedAt != nil {
		t := *op.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// CreateBooth stores a new booth, claiming its code if it has one.
func (m *MemoryStore) CreateBooth(_ context.Context, booth *model.Booth) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if booth.Code != nil {
		if _, taken := m.codes[*booth.Code]; taken {
			return ErrCodeConflict
		}
		m.codes[*booth.Code] = booth.ID
	}
	m.booths[booth.ID] = copyBooth(booth)
	return nil
}

// GetBooth returns a copy of the booth with the given id.
func (m *MemoryStore) GetBooth(_ context.Context, id string) (*model.Booth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.booths[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBooth(b), nil
}

// GetBoothByCode returns the booth currently holding code.
func (m *MemoryStore) GetBoothByCode(_ context.Context, code string) (*model.Booth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBooth(m.booths[id]), nil
}

// CodeExists reports whether any booth holds code.
func (m *MemoryStore) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.codes[code]
	return ok, nil
}

// SetBoothCode replaces or, with a nil code, clears a booth's code.
func (m *MemoryStore) SetBoothCode(_ context.Context, boothID string, code *string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.booths[boothID]
	if !ok {
		return ErrNotFound
	}
	if code != nil {
		if owner, taken := m.codes[*code]; taken && owner != boothID {
			return ErrCodeConflict
		}
	}
	if b.Code != nil {
		delete(m.codes, *b.Code)
	}
	b.Code, b.CodeExpiresAt = nil, nil
	if code != nil {
		c := *code
		b.Code = &c
		m.codes[c] = boothID
	}
	if expiresAt != nil {
		t := *expiresAt
		b.CodeExpiresAt = &t
	}
	return nil
}

// RecordAttempt appends to the audit log.
func (m *MemoryStore) RecordAttempt(_ context.Context, a *model.CodeAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, *a)
	return nil
}

// FailedAttempts counts failures from address after since and picks the one
// nth places back from the newest.
func (m *MemoryStore) FailedAttempts(_ context.Context, address string, since time.Time, nth int) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var times []time.Time
	for _, a := range m.attempts {
		if a.Address != address || a.Success || !a.AttemptedAt.After(since) {
			continue
		}
		times = append(times, a.AttemptedAt)
	}
	if nth < 0 || nth >= len(times) {
		return len(times), time.Time{}, nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return len(times), times[nth], nil
}

// Attempts returns a copy of the audit log.
func (m *MemoryStore) Attempts() []model.CodeAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.CodeAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

func (m *MemoryStore) countActiveLocked(boothID string) int {
	n := 0
	for _, op := range m.ops {
		if op.BoothID == boothID && op.IsActive {
			n++
		}
	}
	return n
}

// CountActiveOperations returns the number of active operations at a booth.
func (m *MemoryStore) CountActiveOperations(_ context.Context, boothID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.countActiveLocked(boothID), nil
}

// InsertOperationIfCapacity checks capacity and inserts under one lock.
func (m *MemoryStore) InsertOperationIfCapacity(_ context.Context, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.booths[op.BoothID]
	if !ok {
		return ErrNotFound
	}
	if m.countActiveLocked(op.BoothID) >= b.MaxOperators {
		return &CapacityError{Limit: b.MaxOperators}
	}
	m.ops[op.ID] = copyOperation(op)
	return nil
}

// GetOperation returns a copy of the operation with the given id.
func (m *MemoryStore) GetOperation(_ context.Context, id string) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOperation(op), nil
}

// ListActiveOperations returns a booth's active operations, oldest first.
func (m *MemoryStore) ListActiveOperations(_ context.Context, boothID string) ([]model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ops []model.Operation
	for _, op := range m.ops {
		if op.BoothID == boothID && op.IsActive {
			ops = append(ops, *copyOperation(op))
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].StartedAt.Before(ops[j].StartedAt) })
	return ops, nil
}

// CloseOperation closes an active operation and folds delta into the
// booth's daily stat. It returns false if the operation was not active.
func (m *MemoryStore) CloseOperation(_ context.Context, id string, endedAt time.Time, totalParticipants int, delta model.DailyStatDelta) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[id]
	if !ok || !op.IsActive {
		return false, nil
	}
	t := endedAt
	op.EndedAt = &t
	op.IsActive = false
	op.TotalParticipants = totalParticipants

	key := delta.BoothID + "|" + delta.Date
	st, ok := m.stats[key]
	if !ok {
		st = &model.DailyStat{BoothID: delta.BoothID, Date: delta.Date}
		m.stats[key] = st
	}
	st.Apply(delta)
	return true, nil
}

// OperationTotals sums operations for boothID, or all booths when empty.
func (m *MemoryStore) OperationTotals(_ context.Context, boothID string) (model.OperationTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var t model.OperationTotals
	for _, op := range m.ops {
		if boothID != "" && op.BoothID != boothID {
			continue
		}
		t.Total++
		if op.IsActive {
			t.Active++
			continue
		}
		t.Closed++
		t.TotalParticipants += op.TotalParticipants
		t.TotalMinutes += model.NewDuration(op.StartedAt, *op.EndedAt).TotalMinutes
	}
	return t, nil
}

// ListDailyStats returns copies of the daily rollups ordered by date.
func (m *MemoryStore) ListDailyStats(_ context.Context, boothID string) ([]model.DailyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats []model.DailyStat
	for _, st := range m.stats {
		if boothID != "" && st.BoothID != boothID {
			continue
		}
		c := *st
		c.ParticipantsByCategory = make(map[string]int, len(st.ParticipantsByCategory))
		for k, v := range st.ParticipantsByCategory {
			c.ParticipantsByCategory[k] = v
		}
		stats = append(stats, c)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date < stats[j].Date
		}
		return stats[i].BoothID < stats[j].BoothID
	})
	return stats, nil
}

// CreateSession stores a session bound to an existing operation.
func (m *MemoryStore) CreateSession(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ops[sess.OperationID]; !ok {
		return ErrNotFound
	}
	c := *sess
	m.sessions[sess.Token] = &c
	return nil
}

// GetSession returns a copy of the session for token.
func (m *MemoryStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sess
	return &c, nil
}

// TouchSession moves last activity forward to at.
func (m *MemoryStore) TouchSession(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	if at.After(sess.LastActivityAt) {
		sess.LastActivityAt = at
	}
	return nil
}

// ExtendSession moves the expiry forward, never back, and returns it.
func (m *MemoryStore) ExtendSession(_ context.Context, token string, expiresAt, at time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if expiresAt.After(sess.ExpiresAt) {
		sess.ExpiresAt = expiresAt
	}
	if at.After(sess.LastActivityAt) {
		sess.LastActivityAt = at
	}
	return sess.ExpiresAt, nil
}

// DeleteSession removes the session for token.
func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, token)
	return nil
}

// MemoryParticipants is an in-process ParticipantCounter.
type MemoryParticipants struct {
	mu      sync.Mutex
	records []participantRecord
}

type participantRecord struct {
	boothID      string
	category     string
	registeredAt time.Time
}

// NewMemoryParticipants returns an empty MemoryParticipants.
func NewMemoryParticipants() *MemoryParticipants {
	return &MemoryParticipants{}
}

// Add registers one participant.
func (p *MemoryParticipants) Add(boothID, category string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, participantRecord{boothID: boothID, category: category, registeredAt: at})
}

// CountParticipants returns registrations per category in [from, to).
func (p *MemoryParticipants) CountParticipants(_ context.Context, boothID string, from, to time.Time) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range p.records {
		if r.boothID != boothID || r.registeredAt.Before(from) || !r.registeredAt.Before(to) {
			continue
		}
		counts[r.category]++
	}
	return counts, nil
}
