// Package attendance decides self check-in admission, records staff marks and
// back-fills absences at the end of the day.
package attendance

import (
	"time"

	"cloud.google.com/go/civil"
)

// Status enumerates attendance outcomes.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return true
	default:
		return false
	}
}

// Record is one member's attendance for one civil day. The store keeps at
// most one record per (member, day).
type Record struct {
	ID          int64      `json:"id"`
	MemberID    int64      `json:"member_id"`
	BatchID     *int64     `json:"batch_id,omitempty"`
	AttendedOn  civil.Date `json:"attended_on"`
	Status      Status     `json:"status"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
	MarkedBy    *int64     `json:"marked_by,omitempty"` // nil for self check-in and sweeps
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SweepNote is attached to records written by the absence sweeper.
const SweepNote = "auto-marked absent by end-of-day sweep"

// EligibleMember is a member expected to attend on a given day.
type EligibleMember struct {
	MemberID int64
	BatchID  int64
}

// MarkInput carries a staff attendance mark.
type MarkInput struct {
	MemberID int64
	Date     *civil.Date
	Status   Status
	Note     string
	ActorID  int64
}
