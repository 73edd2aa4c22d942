package attendance

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// Repository defines attendance persistence. Uniqueness of (member, day) is
// enforced by the store and reported as ErrAlreadyMarked.
type Repository interface {
	GetForDay(ctx context.Context, memberID int64, day civil.Date) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	CountByStatus(ctx context.Context, from, to civil.Date) (map[Status]int, error)

	// Sweep support
	ListEligible(ctx context.Context, day civil.Date) ([]EligibleMember, error)
	MarkedMemberIDs(ctx context.Context, day civil.Date) ([]int64, error)
	InsertAbsent(ctx context.Context, day civil.Date, members []EligibleMember) (int, error)
}

const uniqueDayConstraint = "attendance_member_day_key"

const recordColumns = `id, member_id, batch_id, attended_on, status, check_in_time, marked_by, note, created_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed attendance repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetForDay(ctx context.Context, memberID int64, day civil.Date) (*Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+`
		FROM attendance_records
		WHERE member_id = $1 AND attended_on = $2`, memberID, db.CivilArg(day))
	return scanRecord(row)
}

func (r *repository) Insert(ctx context.Context, rec *Record) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (member_id, batch_id, attended_on, status, check_in_time, marked_by, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		rec.MemberID, rec.BatchID, db.CivilArg(rec.AttendedOn), rec.Status, rec.CheckInTime, rec.MarkedBy, rec.Note,
	).Scan(&rec.ID, &rec.CreatedAt)
	if db.IsUniqueViolation(err, uniqueDayConstraint) {
		return ErrAlreadyMarked
	}
	return err
}

func (r *repository) CountByStatus(ctx context.Context, from, to civil.Date) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM attendance_records
		WHERE attended_on BETWEEN $1 AND $2
		GROUP BY status`, db.CivilArg(from), db.CivilArg(to))
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

// ListEligible returns members expected to attend on day. Stored status can
// lag the nightly refresh, so coverage is checked against day as well.
func (r *repository) ListEligible(ctx context.Context, day civil.Date) ([]EligibleMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id
		FROM members
		WHERE is_active AND batch_id IS NOT NULL
		  AND status IN ('active', 'expiring_soon')
		  AND coverage_end >= $1
		ORDER BY id`, db.CivilArg(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EligibleMember
	for rows.Next() {
		var m EligibleMember
		if err := rows.Scan(&m.MemberID, &m.BatchID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) MarkedMemberIDs(ctx context.Context, day civil.Date) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT member_id FROM attendance_records WHERE attended_on = $1`, db.CivilArg(day))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// InsertAbsent writes absent records in one statement, skipping members that
// gained a record since the caller looked. It returns the rows written.
func (r *repository) InsertAbsent(ctx context.Context, day civil.Date, members []EligibleMember) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	memberIDs := make([]int64, len(members))
	batchIDs := make([]int64, len(members))
	for i, m := range members {
		memberIDs[i] = m.MemberID
		batchIDs[i] = m.BatchID
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_records (member_id, batch_id, attended_on, status, note)
		SELECT m.member_id, m.batch_id, $3, 'absent', $4
		FROM unnest($1::bigint[], $2::bigint[]) AS m(member_id, batch_id)
		ON CONFLICT (member_id, attended_on) DO NOTHING`,
		memberIDs, batchIDs, db.CivilArg(day), SweepNote)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var day pgtype.Date
	var note pgtype.Text
	err := row.Scan(&rec.ID, &rec.MemberID, &rec.BatchID, &day, &rec.Status, &rec.CheckInTime, &rec.MarkedBy, &note, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	rec.AttendedOn = db.Civil(day)
	rec.Note = note.String
	return &rec, nil
}
