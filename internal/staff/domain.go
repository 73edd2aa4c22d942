// Package staff holds the accounts of people who operate the front desk.
package staff

import (
	"fmt"
	"time"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// Role grants staff capabilities.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Account is a staff login.
type Account struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// BootstrapInput describes the first administrator.
type BootstrapInput struct {
	Name     string
	Email    string
	Password string
}

const minPasswordLength = 10

var (
	ErrAccountNotFound = fmt.Errorf("%w: staff account", shared.ErrNotFound)
	ErrWeakPassword    = fmt.Errorf("%w: password must be at least %d characters", shared.ErrBadRequest, minPasswordLength)
)
