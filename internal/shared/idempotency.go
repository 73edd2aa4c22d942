package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// ErrIdempotencyConflict reports a key that was already claimed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore claims client supplied request keys so a replayed
// submission is recognised. Keys are global; module records which operation
// claimed them.
type IdempotencyStore struct {
	db Execer
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// CheckAndInsert claims key, or fails with ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errNoDatabase
	}
	if key == "" || module == "" {
		return fmt.Errorf("%w: idempotency key and module required", ErrBadRequest)
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module) VALUES ($1, $2)`, key, module)
	switch {
	case db.IsUniqueViolation(err, ""):
		return ErrIdempotencyConflict
	case err != nil:
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	return nil
}

// Delete releases key after the guarded operation failed. A missing store is
// a no-op.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil || key == "" {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Cleanup prunes keys claimed more than olderThan ago and reports how many
// were removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < NOW() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
