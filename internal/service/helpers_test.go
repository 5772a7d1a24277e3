package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// zeroReader yields zero bytes, so randomString always picks alphabet[0].
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// spyStore wraps MemoryStore to count lookups and inject failures.
type spyStore struct {
	*repository.MemoryStore

	mu               sync.Mutex
	boothByCodeCalls int

	codeExists       func(code string) (bool, error)
	boothByCodeErr   error
	recordAttemptErr error
	createSessionErr error
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *spyStore) GetBoothByCode(ctx context.Context, code string) (*model.Booth, error) {
	s.mu.Lock()
	s.boothByCodeCalls++
	s.mu.Unlock()
	if s.boothByCodeErr != nil {
		return nil, s.boothByCodeErr
	}
	return s.MemoryStore.GetBoothByCode(ctx, code)
}

func (s *spyStore) BoothByCodeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boothByCodeCalls
}

func (s *spyStore) CodeExists(ctx context.Context, code string) (bool, error) {
	if s.codeExists != nil {
		return s.codeExists(code)
	}
	return s.MemoryStore.CodeExists(ctx, code)
}

func (s *spyStore) RecordAttempt(ctx context.Context, a *model.CodeAttempt) error {
	if s.recordAttemptErr != nil {
		return s.recordAttemptErr
	}
	return s.MemoryStore.RecordAttempt(ctx, a)
}

func (s *spyStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if s.createSessionErr != nil {
		return s.createSessionErr
	}
	return s.MemoryStore.CreateSession(ctx, sess)
}

type fixture struct {
	store        *spyStore
	participants *repository.MemoryParticipants
	clock        *fakeClock
	core         *Core
}

func newFixture(t *testing.T, tune ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:        newSpyStore(),
		participants: repository.NewMemoryParticipants(),
		clock:        newFakeClock(t0),
	}
	opts := Options{Now: f.clock.Now}
	for _, fn := range tune {
		fn(&opts)
	}
	f.core = New(f.store, f.participants, opts)
	return f
}

// addBooth stores an active booth holding code (no code when empty).
func (f *fixture) addBooth(t *testing.T, id, code string, maxOperators int) *model.Booth {
	t.Helper()
	b := &model.Booth{ID: id, Name: "Booth " + id, IsActive: true, MaxOperators: maxOperators}
	if code != "" {
		b.Code = &code
	}
	require.NoError(t, f.store.CreateBooth(context.Background(), b))
	return b
}

func operator(name string) model.OperatorInfo {
	return model.OperatorInfo{Name: name, Contact: "+1 555 010 2030"}
}
