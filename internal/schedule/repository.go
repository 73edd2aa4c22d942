package schedule

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines batch persistence.
type Repository interface {
	ListBatches(ctx context.Context) ([]Batch, error)
	GetBatch(ctx context.Context, id int64) (*Batch, error)
	InsertBatch(ctx context.Context, b *Batch) error
	UpdateBatch(ctx context.Context, b *Batch) error
}

const batchColumns = `id, name, start_time, end_time, capacity, active, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed batch repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY start_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *repository) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
}

func (r *repository) InsertBatch(ctx context.Context, b *Batch) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO batches (name, start_time, end_time, capacity, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		b.Name, timeArg(b.Start), timeArg(b.End), b.Capacity, b.Active,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repository) UpdateBatch(ctx context.Context, b *Batch) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE batches
		SET name = $2, start_time = $3, end_time = $4, capacity = $5, active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Name, timeArg(b.Start), timeArg(b.End), b.Capacity, b.Active,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBatchNotFound
	}
	return err
}

func scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch
	var start, end pgtype.Time
	if err := row.Scan(&b.ID, &b.Name, &start, &end, &b.Capacity, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	b.Start = fromTime(start)
	b.End = fromTime(end)
	return &b, nil
}

const microsPerMinute = int64(60 * 1000 * 1000)

func timeArg(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerMinute, Valid: true}
}

func fromTime(v pgtype.Time) TimeOfDay {
	return TimeOfDay(v.Microseconds / microsPerMinute)
}
