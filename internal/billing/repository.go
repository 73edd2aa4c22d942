package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// Repository defines ledger persistence.
type Repository interface {
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	ListPeriods(ctx context.Context, memberID int64) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository combines member writes with period writes in one transaction.
type TxRepository interface {
	membership.TxRepository
	InsertPeriod(ctx context.Context, p *Period) error
	LockPeriod(ctx context.Context, id int64) (*Period, error)
	SaveRetraction(ctx context.Context, p *Period) error
	ListActivePeriods(ctx context.Context, memberID int64) ([]Period, error)
}

const periodColumns = `id, member_id, receipt_number, amount, method, duration_months,
	period_start, period_end, active, note, retract_reason, recorded_by, recorded_at, retracted_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	membership.TxRepository
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: membership.NewTxRepository(tx), tx: tx})
	})
}

func (r *repository) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM billing_periods WHERE id = $1`, id))
}

func (r *repository) ListPeriods(ctx context.Context, memberID int64) ([]Period, error) {
	return collectPeriods(ctx, r.pool, `SELECT `+periodColumns+`
		FROM billing_periods
		WHERE member_id = $1
		ORDER BY period_start, id`, memberID)
}

func (t *txRepository) InsertPeriod(ctx context.Context, p *Period) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO billing_periods (
			member_id, receipt_number, amount, method, duration_months,
			period_start, period_end, active, note, recorded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)
		RETURNING id, recorded_at`,
		p.MemberID, p.ReceiptNumber, p.Amount, p.Method, p.DurationMonths,
		db.CivilArg(p.PeriodStart), db.CivilArg(p.PeriodEnd), p.Note, actorArg(p.RecordedBy),
	).Scan(&p.ID, &p.RecordedAt)
	if db.IsUniqueViolation(err, "billing_periods_receipt_number_key") {
		return ErrReceiptCollision
	}
	return err
}

func (t *txRepository) LockPeriod(ctx context.Context, id int64) (*Period, error) {
	return scanPeriod(t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM billing_periods WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) SaveRetraction(ctx context.Context, p *Period) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE billing_periods
		SET active = FALSE, retract_reason = $2, retracted_at = $3
		WHERE id = $1 AND active`,
		p.ID, p.RetractReason, p.RetractedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRetracted
	}
	return nil
}

func (t *txRepository) ListActivePeriods(ctx context.Context, memberID int64) ([]Period, error) {
	return collectPeriods(ctx, t.tx, `SELECT `+periodColumns+`
		FROM billing_periods
		WHERE member_id = $1 AND active
		ORDER BY period_start, id`, memberID)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectPeriods(ctx context.Context, q queryer, query string, args ...any) ([]Period, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPeriod(row pgx.Row) (*Period, error) {
	var p Period
	var start, end pgtype.Date
	var note, reason pgtype.Text
	var recordedBy pgtype.Int8
	err := row.Scan(
		&p.ID, &p.MemberID, &p.ReceiptNumber, &p.Amount, &p.Method, &p.DurationMonths,
		&start, &end, &p.Active, &note, &reason, &recordedBy, &p.RecordedAt, &p.RetractedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	p.PeriodStart = db.Civil(start)
	p.PeriodEnd = db.Civil(end)
	p.Note = note.String
	p.RetractReason = reason.String
	p.RecordedBy = recordedBy.Int64
	return &p, nil
}

func actorArg(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id > 0}
}
