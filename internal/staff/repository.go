package staff

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// Repository persists staff accounts.
type Repository interface {
	FindAdmin(ctx context.Context) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, acc *Account) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, name, email, password_hash, role, is_active, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.IsActive, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// FindAdmin returns the oldest active administrator.
func (r *PGRepository) FindAdmin(ctx context.Context) (*Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM staff
WHERE role = 'admin' AND is_active ORDER BY id LIMIT 1`))
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM staff WHERE email = $1`, email))
}

// Create inserts acc and fills its id and timestamp.
func (r *PGRepository) Create(ctx context.Context, acc *Account) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO staff (name, email, password_hash, role, is_active)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		acc.Name, acc.Email, acc.PasswordHash, acc.Role, acc.IsActive,
	).Scan(&acc.ID, &acc.CreatedAt)
	if db.IsUniqueViolation(err, "staff_email_key") {
		return shared.ErrConflict
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
