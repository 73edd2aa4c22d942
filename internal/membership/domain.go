// Package membership owns the member lifecycle: registration, status
// classification and the freeze/unfreeze controller.
package membership

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/gymdesk/gymdesk/internal/clock"
)

// Status enumerates membership statuses.
type Status string

const (
	StatusPending      Status = "pending"       // registered, no payment yet (trial)
	StatusActive       Status = "active"        // paid, more than a week left
	StatusExpiringSoon Status = "expiring_soon" // coverage ends within a week
	StatusExpired      Status = "expired"       // coverage ended
	StatusFrozen       Status = "frozen"        // paused by staff
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpiringSoon, StatusExpired, StatusFrozen:
		return true
	default:
		return false
	}
}

// IsSticky reports whether automatic classification must leave the status alone.
func (s Status) IsSticky() bool {
	return s == StatusFrozen || s == StatusPending
}

// CanFreeze reports whether a member in this status may be frozen.
func (s Status) CanFreeze() bool {
	return s == StatusActive || s == StatusExpiringSoon
}

// PaymentState enumerates the billing standing of a member.
type PaymentState string

const (
	PaymentPending PaymentState = "pending"
	PaymentPaid    PaymentState = "paid"
	PaymentOverdue PaymentState = "overdue"
)

// Member is a person holding (or applying for) a membership.
type Member struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Phone           string       `json:"phone"`
	Email           string       `json:"email"`
	DateOfBirth     *civil.Date  `json:"date_of_birth,omitempty"`
	BatchID         *int64       `json:"batch_id,omitempty"`
	Status          Status       `json:"status"`
	PaymentState    PaymentState `json:"payment_state"`
	CoverageEnd     *civil.Date  `json:"coverage_end,omitempty"`
	MembershipStart *civil.Date  `json:"membership_start,omitempty"`
	FreezeStart     *civil.Date  `json:"freeze_start,omitempty"`
	FreezeEnd       *civil.Date  `json:"freeze_end,omitempty"`
	FreezeReason    string       `json:"freeze_reason,omitempty"`
	RegisteredOn    civil.Date   `json:"registered_on"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DaysLeft returns coverage_end − today. ok is false when no coverage exists.
func (m *Member) DaysLeft(today civil.Date) (days int, ok bool) {
	if m == nil || m.CoverageEnd == nil {
		return 0, false
	}
	return clock.DaysBetween(today, *m.CoverageEnd), true
}

// HasBirthday reports whether today's month and day match the date of birth.
func (m *Member) HasBirthday(today civil.Date) bool {
	if m == nil || m.DateOfBirth == nil {
		return false
	}
	return m.DateOfBirth.Month == today.Month && m.DateOfBirth.Day == today.Day
}

// NewMemberInput carries registration data.
type NewMemberInput struct {
	Name        string
	Phone       string
	Email       string
	DateOfBirth *civil.Date
	BatchID     *int64
	ActorID     int64
}

// ListFilter narrows member listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// FreezeInput carries a freeze request.
type FreezeInput struct {
	MemberID     int64
	Reason       string
	StartOn      *civil.Date
	ExpectedDays *int
	ActorID      int64
}

// UnfreezeInput carries a resume request.
type UnfreezeInput struct {
	MemberID  int64
	ExtraDays int
	ActorID   int64
}
