package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

var validate = validator.New()

// Bootstrap creates the first administrator. When an administrator already
// exists it is returned unchanged with created false, so the routine is safe to
// run on every deploy.
func Bootstrap(ctx context.Context, repo Repository, in BootstrapInput, logger *slog.Logger) (acc *Account, created bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	existing, err := repo.FindAdmin(ctx)
	switch {
	case err == nil:
		logger.Info("admin already present", slog.Int64("staff_id", existing.ID))
		return existing, false, nil
	case !errors.Is(err, ErrAccountNotFound):
		return nil, false, fmt.Errorf("staff: find admin: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, false, fmt.Errorf("%w: name is required", shared.ErrBadRequest)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, false, fmt.Errorf("%w: invalid email %q", shared.ErrBadRequest, in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return nil, false, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("staff: hash password: %w", err)
	}

	acc = &Account{Name: name, Email: email, PasswordHash: string(hash), Role: RoleAdmin, IsActive: true}
	if err := repo.Create(ctx, acc); err != nil {
		return nil, false, fmt.Errorf("staff: create admin: %w", err)
	}
	logger.Info("admin created", slog.Int64("staff_id", acc.ID), slog.String("email", acc.Email))
	return acc, true, nil
}

// CheckPassword reports whether password matches the account's hash.
func (a *Account) CheckPassword(password string) bool {
	return a != nil && a.IsActive && bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
