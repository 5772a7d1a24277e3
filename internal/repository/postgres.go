package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on a pgx connection pool. Every call runs
// under its own timeout so a stalled database surfaces as an error instead
// of blocking the request.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore constructs a PostgresStore. A non-positive timeout
// defaults to five seconds.
func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// ─── Booths ───────────────────────────────────────────────────────────────────

const boothColumns = `id, name, code, code_expires_at, is_active, max_operators`

func scanBooth(row pgx.Row) (*model.Booth, error) {
	var b model.Booth
	if err := row.Scan(&b.ID, &b.Name, &b.Code, &b.CodeExpiresAt, &b.IsActive, &b.MaxOperators); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan booth: %w", err)
	}
	return &b, nil
}

// CreateBooth inserts a booth. Booth administration is external; this exists
// for seeding and tests.
func (s *PostgresStore) CreateBooth(ctx context.Context, booth *model.Booth) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO booths (`+boothColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		booth.ID, booth.Name, booth.Code, booth.CodeExpiresAt, booth.IsActive, booth.MaxOperators,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return fmt.Errorf("insert booth: %w", err)
	}
	return nil
}

// GetBooth returns a single booth or ErrNotFound.
func (s *PostgresStore) GetBooth(ctx context.Context, id string) (*model.Booth, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return scanBooth(s.db.QueryRow(ctx,
		`SELECT `+boothColumns+` FROM booths WHERE id = $1`, id))
}

// GetBoothByCode looks up the booth holding code by exact match.
func (s *PostgresStore) GetBoothByCode(ctx context.Context, code string) (*model.Booth, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return scanBooth(s.db.QueryRow(ctx,
		`SELECT `+boothColumns+` FROM booths WHERE code = $1`, code))
}

// CodeExists reports whether any booth currently holds code.
func (s *PostgresStore) CodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM booths WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return exists, nil
}

// SetBoothCode relies on the unique index on booths.code; a concurrent
// assignment of the same code fails here rather than in the generator.
func (s *PostgresStore) SetBoothCode(ctx context.Context, boothID string, code *string, expiresAt *time.Time) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE booths SET code = $2, code_expires_at = $3 WHERE id = $1`,
		boothID, code, expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return fmt.Errorf("update booth code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Code attempts ────────────────────────────────────────────────────────────

// RecordAttempt appends to the audit log.
func (s *PostgresStore) RecordAttempt(ctx context.Context, a *model.CodeAttempt) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO code_attempts (id, code, address, attempted_at, success, booth_id, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Code, a.Address, a.AttemptedAt, a.Success, a.BoothID, a.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert code attempt: %w", err)
	}
	return nil
}

// FailedAttempts counts failures from address after since and returns the
// one nth places back from the newest.
func (s *PostgresStore) FailedAttempts(ctx context.Context, address string, since time.Time, nth int) (int, time.Time, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var (
		count int
		at    *time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        (SELECT attempted_at
		         FROM code_attempts
		         WHERE address = $1 AND success = FALSE AND attempted_at > $2
		         ORDER BY attempted_at DESC
		         OFFSET $3 LIMIT 1)
		 FROM code_attempts
		 WHERE address = $1 AND success = FALSE AND attempted_at > $2`,
		address, since, max(nth, 0),
	).Scan(&count, &at)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("count failed attempts: %w", err)
	}
	if at == nil || nth < 0 {
		return count, time.Time{}, nil
	}
	return count, *at, nil
}

// ─── Operations ───────────────────────────────────────────────────────────────

const operationColumns = `id, booth_id, operator_name, operator_contact, started_at, ended_at, is_active, total_participants`

func scanOperation(row pgx.Row) (*model.Operation, error) {
	var op model.Operation
	err := row.Scan(&op.ID, &op.BoothID, &op.OperatorName, &op.OperatorContact,
		&op.StartedAt, &op.EndedAt, &op.IsActive, &op.TotalParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan operation: %w", err)
	}
	return &op, nil
}

// CountActiveOperations returns the number of open operations on a booth.
func (s *PostgresStore) CountActiveOperations(ctx context.Context, boothID string) (int, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM booth_operations WHERE booth_id = $1 AND is_active`,
		boothID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active operations: %w", err)
	}
	return n, nil
}

// InsertOperationIfCapacity admits a new operation inside a transaction that
// holds a row lock on the booth.
//
// Two concurrent starts that each read the active count before either
// inserts would both see free capacity and both insert. SELECT … FOR UPDATE
// on the booth row serialises them: the second transaction blocks until the
// first commits, then counts the first one's insert.
func (s *PostgresStore) InsertOperationIfCapacity(ctx context.Context, op *model.Operation) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var maxOperators int
	err = tx.QueryRow(ctx,
		`SELECT max_operators FROM booths WHERE id = $1 FOR UPDATE`,
		op.BoothID,
	).Scan(&maxOperators)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock booth row: %w", err)
	}

	var active int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM booth_operations WHERE booth_id = $1 AND is_active`,
		op.BoothID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("count active operations: %w", err)
	}
	if active >= maxOperators {
		return &CapacityError{Limit: maxOperators}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO booth_operations (`+operationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		op.ID, op.BoothID, op.OperatorName, op.OperatorContact,
		op.StartedAt, op.EndedAt, op.IsActive, op.TotalParticipants,
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetOperation returns a single operation or ErrNotFound.
func (s *PostgresStore) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return scanOperation(s.db.QueryRow(ctx,
		`SELECT `+operationColumns+` FROM booth_operations WHERE id = $1`, id))
}

// ListActiveOperations returns a booth's open operations, oldest first.
func (s *PostgresStore) ListActiveOperations(ctx context.Context, boothID string) ([]model.Operation, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT `+operationColumns+`
		 FROM booth_operations
		 WHERE booth_id = $1 AND is_active
		 ORDER BY started_at ASC`,
		boothID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active operations: %w", err)
	}
	defer rows.Close()

	var ops []model.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// CloseOperation closes an active operation and folds delta into daily_stats.
// The conditional UPDATE … WHERE is_active makes exactly one of several
// concurrent closers the winner; only the winner touches the rollup.
func (s *PostgresStore) CloseOperation(ctx context.Context, id string, endedAt time.Time, totalParticipants int, delta model.DailyStatDelta) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE booth_operations
		 SET ended_at = $2, is_active = FALSE, total_participants = $3
		 WHERE id = $1 AND is_active`,
		id, endedAt, totalParticipants,
	)
	if err != nil {
		return false, fmt.Errorf("close operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO daily_stats (booth_id, date, total_participants, operator_count, total_minutes, total_hours)
		 VALUES ($1, $2::date, $3, 1, $4, $5::numeric)
		 ON CONFLICT (booth_id, date) DO UPDATE SET
		   total_participants = daily_stats.total_participants + EXCLUDED.total_participants,
		   operator_count     = daily_stats.operator_count + 1,
		   total_minutes      = daily_stats.total_minutes + EXCLUDED.total_minutes,
		   total_hours        = daily_stats.total_hours + EXCLUDED.total_hours`,
		delta.BoothID, delta.Date, delta.TotalParticipants, delta.Minutes, delta.Hours.String(),
	)
	if err != nil {
		return false, fmt.Errorf("upsert daily stat: %w", err)
	}

	for category, n := range delta.ParticipantsByCategory {
		_, err = tx.Exec(ctx,
			`INSERT INTO daily_stat_categories (booth_id, date, category, participants)
			 VALUES ($1, $2::date, $3, $4)
			 ON CONFLICT (booth_id, date, category) DO UPDATE SET
			   participants = daily_stat_categories.participants + EXCLUDED.participants`,
			delta.BoothID, delta.Date, category, n,
		)
		if err != nil {
			return false, fmt.Errorf("upsert daily stat category: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

// OperationTotals aggregates operations for one booth, or all booths when
// boothID is empty. Participant and minute totals cover closed operations.
func (s *PostgresStore) OperationTotals(ctx context.Context, boothID string) (model.OperationTotals, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var t model.OperationTotals
	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*),
		   COUNT(*) FILTER (WHERE is_active),
		   COUNT(*) FILTER (WHERE NOT is_active),
		   COALESCE(SUM(total_participants) FILTER (WHERE NOT is_active), 0),
		   COALESCE(SUM(FLOOR(EXTRACT(EPOCH FROM (ended_at - started_at)) / 60)) FILTER (WHERE NOT is_active), 0)::bigint
		 FROM booth_operations
		 WHERE ($1 = '' OR booth_id = $1)`,
		boothID,
	).Scan(&t.Total, &t.Active, &t.Closed, &t.TotalParticipants, &t.TotalMinutes)
	if err != nil {
		return model.OperationTotals{}, fmt.Errorf("operation totals: %w", err)
	}
	return t, nil
}

// ListDailyStats returns rollups ordered by date, for one booth or all.
func (s *PostgresStore) ListDailyStats(ctx context.Context, boothID string) ([]model.DailyStat, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT booth_id, to_char(date, 'YYYY-MM-DD'), total_participants, operator_count, total_minutes, total_hours::text
		 FROM daily_stats
		 WHERE ($1 = '' OR booth_id = $1)
		 ORDER BY date ASC, booth_id ASC`,
		boothID,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []model.DailyStat
	index := make(map[string]int)
	for rows.Next() {
		var (
			st    model.DailyStat
			hours string
		)
		if err := rows.Scan(&st.BoothID, &st.Date, &st.TotalParticipants, &st.OperatorCount, &st.TotalMinutes, &hours); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		if st.TotalHours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("parse total hours %q: %w", hours, err)
		}
		st.ParticipantsByCategory = make(map[string]int)
		index[st.BoothID+"|"+st.Date] = len(stats)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.Query(ctx,
		`SELECT booth_id, to_char(date, 'YYYY-MM-DD'), category, participants
		 FROM daily_stat_categories
		 WHERE ($1 = '' OR booth_id = $1)`,
		boothID,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily stat categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var (
			booth, date, category string
			n                     int
		)
		if err := catRows.Scan(&booth, &date, &category, &n); err != nil {
			return nil, fmt.Errorf("scan daily stat category: %w", err)
		}
		if i, ok := index[booth+"|"+date]; ok {
			stats[i].ParticipantsByCategory[category] = n
		}
	}
	return stats, catRows.Err()
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

const sessionColumns = `id, token, operation_id, expires_at, last_activity_at, address, created_at`

// CreateSession stores a newly issued session.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO operator_sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.Token, sess.OperationID, sess.ExpiresAt, sess.LastActivityAt, sess.Address, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession looks a session up by token.
func (s *PostgresStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var sess model.Session
	err := s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM operator_sessions WHERE token = $1`, token,
	).Scan(&sess.ID, &sess.Token, &sess.OperationID, &sess.ExpiresAt, &sess.LastActivityAt, &sess.Address, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// TouchSession records activity on a session.
func (s *PostgresStore) TouchSession(ctx context.Context, token string, at time.Time) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE operator_sessions SET last_activity_at = GREATEST(last_activity_at, $2) WHERE token = $1`,
		token, at,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExtendSession pushes expires_at to at least expiresAt.
func (s *PostgresStore) ExtendSession(ctx context.Context, token string, expiresAt, at time.Time) (time.Time, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var newExpiry time.Time
	err := s.db.QueryRow(ctx,
		`UPDATE operator_sessions
		 SET expires_at = GREATEST(expires_at, $2), last_activity_at = GREATEST(last_activity_at, $3)
		 WHERE token = $1
		 RETURNING expires_at`,
		token, expiresAt, at,
	).Scan(&newExpiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("extend session: %w", err)
	}
	return newExpiry, nil
}

// DeleteSession removes a session.
func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM operator_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Participants ─────────────────────────────────────────────────────────────

// PostgresParticipants counts rows in the participant-registration table,
// which is owned by the registration system.
type PostgresParticipants struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresParticipants constructs a PostgresParticipants.
func NewPostgresParticipants(db *pgxpool.Pool, timeout time.Duration) *PostgresParticipants {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresParticipants{db: db, timeout: timeout}
}

// CountParticipants groups a booth's registrations in [from, to) by category.
func (p *PostgresParticipants) CountParticipants(ctx context.Context, boothID string, from, to time.Time) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.Query(ctx,
		`SELECT category, COUNT(*)
		 FROM participants
		 WHERE booth_id = $1 AND registered_at >= $2 AND registered_at < $3
		 GROUP BY category`,
		boothID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan participant count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
