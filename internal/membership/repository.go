package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// Repository defines member persistence.
type Repository interface {
	// Read operations
	GetMember(ctx context.Context, id int64) (*Member, error)
	FindActiveByContact(ctx context.Context, phone, email string) (*Member, error)
	ListMembers(ctx context.Context, filter ListFilter) ([]Member, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	ListClassifiable(ctx context.Context) ([]Member, error)
	ListHistory(ctx context.Context, memberID int64) ([]Event, error)

	// SaveClassification persists status and payment state only if the row
	// still carries prevStatus, so it never overwrites a concurrent freeze.
	SaveClassification(ctx context.Context, m *Member, prevStatus Status) error

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional member writes. Other packages reuse it
// inside their own units of work through NewTxRepository.
type TxRepository interface {
	LockMember(ctx context.Context, id int64) (*Member, error)
	InsertMember(ctx context.Context, m *Member) error
	SaveLifecycle(ctx context.Context, m *Member) error
	AppendEvent(ctx context.Context, e *Event) error
	LatestEvent(ctx context.Context, memberID int64, kind EventKind) (*Event, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const memberColumns = `id, name, phone, email, date_of_birth, batch_id, status, payment_state,
	coverage_end, membership_start, freeze_start, freeze_end, freeze_reason,
	registered_on, is_active, created_at, updated_at`

const eventColumns = `id, member_id, kind, occurred_on, prior_status, coverage_end_before,
	coverage_end_after, period_id, freeze_start, expected_freeze_end, reason,
	days_frozen, extra_days, actor_id, recorded_at`

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetMember retrieves a member by ID.
func (r *repository) GetMember(ctx context.Context, id int64) (*Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	return scanMember(row)
}

// FindActiveByContact performs the exact (phone, email) lookup used by self check-in.
func (r *repository) FindActiveByContact(ctx context.Context, phone, email string) (*Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+`
		FROM members
		WHERE phone = $1 AND email = $2 AND is_active
		LIMIT 1`, phone, email)
	return scanMember(row)
}

// ListMembers lists active members, optionally filtered by status.
func (r *repository) ListMembers(ctx context.Context, filter ListFilter) ([]Member, error) {
	var where []string
	var args []any
	where = append(where, "is_active")
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM members WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
		memberColumns, strings.Join(where, " AND "), len(args)-1, len(args))
	return collectMembers(ctx, r.pool, query, args...)
}

// CountByStatus counts active members per status.
func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM members WHERE is_active GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListClassifiable returns members whose status is derived from coverage.
func (r *repository) ListClassifiable(ctx context.Context) ([]Member, error) {
	return collectMembers(ctx, r.pool, `SELECT `+memberColumns+`
		FROM members
		WHERE is_active AND coverage_end IS NOT NULL AND status NOT IN ('frozen', 'pending')
		ORDER BY id`)
}

// ListHistory returns a member's lifecycle events, oldest first.
func (r *repository) ListHistory(ctx context.Context, memberID int64) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM member_history WHERE member_id = $1 ORDER BY id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// SaveClassification persists reclassified derived fields.
func (r *repository) SaveClassification(ctx context.Context, m *Member, prevStatus Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE members
		SET status = $2, payment_state = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND coverage_end IS NOT DISTINCT FROM $5`,
		m.ID, m.Status, m.PaymentState, prevStatus, db.DateArg(m.CoverageEnd))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleMember
	}
	return nil
}

// LockMember loads a member row with FOR UPDATE.
func (t *txRepository) LockMember(ctx context.Context, id int64) (*Member, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
	return scanMember(row)
}

// InsertMember creates a member row and fills in generated fields.
func (t *txRepository) InsertMember(ctx context.Context, m *Member) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO members (
			name, phone, email, date_of_birth, batch_id, status, payment_state,
			registered_on, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, created_at, updated_at`,
		m.Name, m.Phone, m.Email, db.DateArg(m.DateOfBirth), m.BatchID, m.Status, m.PaymentState,
		db.CivilArg(m.RegisteredOn),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return translateWriteError(err)
	}
	m.IsActive = true
	return nil
}

// SaveLifecycle writes every lifecycle field of a locked member in one statement.
func (t *txRepository) SaveLifecycle(ctx context.Context, m *Member) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE members
		SET status = $2, payment_state = $3, coverage_end = $4, membership_start = $5,
			freeze_start = $6, freeze_end = $7, freeze_reason = $8, batch_id = $9,
			updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Status, m.PaymentState, db.DateArg(m.CoverageEnd), db.DateArg(m.MembershipStart),
		db.DateArg(m.FreezeStart), db.DateArg(m.FreezeEnd), m.FreezeReason, m.BatchID,
	)
	if err != nil {
		return translateWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEvent inserts an immutable history entry.
func (t *txRepository) AppendEvent(ctx context.Context, e *Event) error {
	var actor pgtype.Int8
	if e.ActorID > 0 {
		actor = pgtype.Int8{Int64: e.ActorID, Valid: true}
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO member_history (
			member_id, kind, occurred_on, prior_status, coverage_end_before, coverage_end_after,
			period_id, freeze_start, expected_freeze_end, reason, days_frozen, extra_days, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, recorded_at`,
		e.MemberID, e.Kind, db.CivilArg(e.OccurredOn), e.PriorStatus,
		db.DateArg(e.CoverageEndBefore), db.DateArg(e.CoverageEndAfter), e.PeriodID,
		db.DateArg(e.FreezeStart), db.DateArg(e.ExpectedFreezeEnd), e.Reason,
		e.DaysFrozen, e.ExtraDays, actor,
	).Scan(&e.ID, &e.RecordedAt)
}

// LatestEvent returns the newest event of kind for a member.
func (t *txRepository) LatestEvent(ctx context.Context, memberID int64, kind EventKind) (*Event, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+eventColumns+`
		FROM member_history
		WHERE member_id = $1 AND kind = $2
		ORDER BY id DESC
		LIMIT 1`, memberID, kind)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func collectMembers(ctx context.Context, q querier, query string, args ...any) ([]Member, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	var dob, coverage, start, freezeStart, freezeEnd, registered pgtype.Date
	var freezeReason pgtype.Text
	err := row.Scan(
		&m.ID, &m.Name, &m.Phone, &m.Email, &dob, &m.BatchID, &m.Status, &m.PaymentState,
		&coverage, &start, &freezeStart, &freezeEnd, &freezeReason,
		&registered, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.DateOfBirth = db.DatePtr(dob)
	m.CoverageEnd = db.DatePtr(coverage)
	m.MembershipStart = db.DatePtr(start)
	m.FreezeStart = db.DatePtr(freezeStart)
	m.FreezeEnd = db.DatePtr(freezeEnd)
	m.FreezeReason = freezeReason.String
	m.RegisteredOn = db.Civil(registered)
	return &m, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var occurred, before, after, freezeStart, expectedEnd pgtype.Date
	var reason pgtype.Text
	var actor pgtype.Int8
	err := row.Scan(
		&e.ID, &e.MemberID, &e.Kind, &occurred, &e.PriorStatus, &before,
		&after, &e.PeriodID, &freezeStart, &expectedEnd, &reason,
		&e.DaysFrozen, &e.ExtraDays, &actor, &e.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	e.OccurredOn = db.Civil(occurred)
	e.CoverageEndBefore = db.DatePtr(before)
	e.CoverageEndAfter = db.DatePtr(after)
	e.FreezeStart = db.DatePtr(freezeStart)
	e.ExpectedFreezeEnd = db.DatePtr(expectedEnd)
	e.Reason = reason.String
	e.ActorID = actor.Int64
	return &e, nil
}

func translateWriteError(err error) error {
	if db.IsUniqueViolation(err, "members_contact_key") {
		return ErrDuplicateContact
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUnknownBatch
	}
	return err
}
