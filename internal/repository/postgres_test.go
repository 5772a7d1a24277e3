package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/database"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresStore connects to TEST_DATABASE_URL, applies the schema and
// empties every table. Tests are skipped when the variable is unset.
func newPostgresStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE operator_sessions, code_attempts, daily_stat_categories,
		daily_stats, booth_operations, participants, booths`)
	require.NoError(t, err)

	return NewPostgresStore(pool, 5*time.Second), pool
}

func pgBooth(t *testing.T, s *PostgresStore, id, code string, maxOperators int) {
	t.Helper()
	b := &model.Booth{ID: id, Name: "Booth " + id, IsActive: true, MaxOperators: maxOperators}
	if code != "" {
		b.Code = &code
	}
	require.NoError(t, s.CreateBooth(context.Background(), b))
}

func TestPostgresStore_BoothCodeUniqueness(t *testing.T) {
	s, _ := newPostgresStore(t)
	ctx := context.Background()
	pgBooth(t, s, "B1", "ABC123", 3)
	pgBooth(t, s, "B2", "", 3)

	b, err := s.GetBoothByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "B1", b.ID)

	code := "ABC123"
	assert.ErrorIs(t, s.SetBoothCode(ctx, "B2", &code, nil), ErrCodeConflict)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	fresh := "NEW777"
	require.NoError(t, s.SetBoothCode(ctx, "B1", &fresh, &expires))
	b, err = s.GetBooth(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, fresh, *b.Code)
	assert.True(t, expires.Equal(*b.CodeExpiresAt))

	exists, err := s.CodeExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, s.SetBoothCode(ctx, "missing", nil, nil), ErrNotFound)
	_, err = s.GetBooth(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ConcurrentAdmission(t *testing.T) {
	s, _ := newPostgresStore(t)
	pgBooth(t, s, "B1", "", 3)
	now := time.Now().UTC()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		denied   int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := &model.Operation{ID: uuid.NewString(), BoothID: "B1", OperatorName: "op", StartedAt: now, IsActive: true}
			err := s.InsertOperationIfCapacity(context.Background(), op)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
				return
			}
			assert.ErrorIs(t, err, ErrAtCapacity)
			denied++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, 7, denied)
	n, err := s.CountActiveOperations(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresStore_CloseOperationSingleWinner(t *testing.T) {
	s, _ := newPostgresStore(t)
	ctx := context.Background()
	pgBooth(t, s, "B1", "", 3)

	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	op := &model.Operation{ID: uuid.NewString(), BoothID: "B1", OperatorName: "op", StartedAt: start, IsActive: true}
	require.NoError(t, s.InsertOperationIfCapacity(ctx, op))

	delta := model.DailyStatDelta{
		BoothID:                "B1",
		Date:                   "2026-03-14",
		ParticipantsByCategory: map[string]int{"student": 2, "faculty": 1},
		TotalParticipants:      3,
		Minutes:                105,
		Hours:                  decimal.RequireFromString("1.75"),
	}
	end := start.Add(105*time.Minute + 30*time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.CloseOperation(context.Background(), op.ID, end, 3, delta)
			if assert.NoError(t, err) && won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	got, err := s.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 3, got.TotalParticipants)

	stats, err := s.ListDailyStats(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "2026-03-14", stats[0].Date)
	assert.Equal(t, 1, stats[0].OperatorCount)
	assert.Equal(t, 105, stats[0].TotalMinutes)
	assert.Equal(t, map[string]int{"student": 2, "faculty": 1}, stats[0].ParticipantsByCategory)
	assert.True(t, decimal.RequireFromString("1.75").Equal(stats[0].TotalHours))

	totals, err := s.OperationTotals(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.OperationTotals{Total: 1, Closed: 1, TotalParticipants: 3, TotalMinutes: 105}, totals)
}

func TestPostgresStore_FailedAttempts(t *testing.T) {
	s, _ := newPostgresStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, ok := range []bool{false, false, true} {
		a := &model.CodeAttempt{
			ID: uuid.NewString(), Code: "ZZZ999", Address: "a",
			AttemptedAt: base.Add(time.Duration(i) * time.Minute), Success: ok,
		}
		if !ok {
			a.Reason = model.ReasonNotFound
		}
		require.NoError(t, s.RecordAttempt(ctx, a))
	}

	count, newest, err := s.FailedAttempts(ctx, "a", base.Add(-time.Second), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, base.Add(time.Minute).Equal(newest))

	count, second, err := s.FailedAttempts(ctx, "a", base.Add(-time.Second), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, base.Equal(second))

	count, beyond, err := s.FailedAttempts(ctx, "a", base.Add(-time.Second), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, beyond.IsZero())

	count, _, err = s.FailedAttempts(ctx, "a", base, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPostgresStore_Sessions(t *testing.T) {
	s, _ := newPostgresStore(t)
	ctx := context.Background()
	pgBooth(t, s, "B1", "", 3)

	now := time.Now().UTC().Truncate(time.Microsecond)
	op := &model.Operation{ID: uuid.NewString(), BoothID: "B1", OperatorName: "op", StartedAt: now, IsActive: true}
	require.NoError(t, s.InsertOperationIfCapacity(ctx, op))

	sess := &model.Session{
		ID: uuid.NewString(), Token: "tok-" + uuid.NewString(), OperationID: op.ID,
		ExpiresAt: now.Add(time.Hour), LastActivityAt: now, CreatedAt: now,
	}
	require.NoError(t, s.CreateSession(ctx, sess))

	expiry, err := s.ExtendSession(ctx, sess.Token, now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.True(t, now.Add(time.Hour).Equal(expiry))

	expiry, err = s.ExtendSession(ctx, sess.Token, now.Add(24*time.Hour), now)
	require.NoError(t, err)
	assert.True(t, now.Add(24*time.Hour).Equal(expiry))

	require.NoError(t, s.TouchSession(ctx, sess.Token, now.Add(time.Minute)))
	got, err := s.GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, now.Add(time.Minute).Equal(got.LastActivityAt))

	require.NoError(t, s.DeleteSession(ctx, sess.Token))
	assert.ErrorIs(t, s.DeleteSession(ctx, sess.Token), ErrNotFound)
	_, err = s.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresParticipants(t *testing.T) {
	_, pool := newPostgresStore(t)
	ctx := context.Background()
	from := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	for _, r := range []struct {
		booth, category string
		at              time.Time
	}{
		{"B1", "student", from},
		{"B1", "student", from.Add(10 * time.Minute)},
		{"B1", "faculty", from.Add(20 * time.Minute)},
		{"B1", "faculty", to},
		{"B2", "student", from.Add(time.Minute)},
	} {
		_, err := pool.Exec(ctx,
			`INSERT INTO participants (booth_id, category, registered_at) VALUES ($1, $2, $3)`,
			r.booth, r.category, r.at)
		require.NoError(t, err)
	}

	counts, err := NewPostgresParticipants(pool, time.Second).CountParticipants(ctx, "B1", from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"student": 2, "faculty": 1}, counts)
}
