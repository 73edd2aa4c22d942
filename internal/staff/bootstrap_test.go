package staff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/shared"
)

type memoryRepo struct {
	accounts []Account
}

func (r *memoryRepo) FindAdmin(ctx context.Context) (*Account, error) {
	for _, a := range r.accounts {
		if a.Role == RoleAdmin && a.IsActive {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *memoryRepo) Create(ctx context.Context, acc *Account) error {
	if _, err := r.FindByEmail(ctx, acc.Email); err == nil {
		return shared.ErrConflict
	}
	acc.ID = int64(len(r.accounts) + 1)
	acc.CreatedAt = time.Now()
	r.accounts = append(r.accounts, *acc)
	return nil
}

func TestBootstrapCreatesAdminOnce(t *testing.T) {
	repo := &memoryRepo{}
	in := BootstrapInput{Name: "Front Desk", Email: " Owner@Gym.Example ", Password: "correct horse"}

	acc, created, err := Bootstrap(context.Background(), repo, in, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "owner@gym.example", acc.Email)
	assert.Equal(t, RoleAdmin, acc.Role)
	assert.NotEqual(t, in.Password, acc.PasswordHash)
	assert.True(t, acc.CheckPassword("correct horse"))
	assert.False(t, acc.CheckPassword("wrong horse"))

	again, created, err := Bootstrap(context.Background(), repo, BootstrapInput{Name: "Other", Email: "x@gym.example", Password: "another password"}, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, acc.ID, again.ID)
	assert.Len(t, repo.accounts, 1)
}

func TestBootstrapValidation(t *testing.T) {
	cases := map[string]BootstrapInput{
		"name":     {Email: "a@gym.example", Password: "long enough pw"},
		"email":    {Name: "A", Email: "not-an-email", Password: "long enough pw"},
		"password": {Name: "A", Email: "a@gym.example", Password: "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Bootstrap(context.Background(), &memoryRepo{}, in, nil)
			assert.ErrorIs(t, err, shared.ErrBadRequest)
		})
	}
}
