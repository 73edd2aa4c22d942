// Package billing keeps the payment ledger: billing periods that extend a
// member's coverage and the recomputation applied when one is withdrawn.
package billing

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/clock"
)

// Period is one paid stretch of coverage.
type Period struct {
	ID             int64      `json:"id"`
	MemberID       int64      `json:"member_id"`
	ReceiptNumber  string     `json:"receipt_number"`
	Amount         int64      `json:"amount"` // minor currency units
	Method         string     `json:"method"`
	DurationMonths int        `json:"duration_months"`
	PeriodStart    civil.Date `json:"period_start"`
	PeriodEnd      civil.Date `json:"period_end"`
	Active         bool       `json:"active"`
	Note           string     `json:"note,omitempty"`
	RetractReason  string     `json:"retract_reason,omitempty"`
	RecordedBy     int64      `json:"recorded_by,omitempty"`
	RecordedAt     time.Time  `json:"recorded_at"`
	RetractedAt    *time.Time `json:"retracted_at,omitempty"`
}

// AddPeriodInput carries a payment.
type AddPeriodInput struct {
	MemberID       int64
	Amount         int64
	DurationMonths int
	Method         string
	StartOn        *civil.Date
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// RetractInput withdraws a recorded period.
type RetractInput struct {
	PeriodID int64
	Reason   string
	ActorID  int64
}

// ReceiptNumber formats RCP-YYYYMMDD-XXXXXXXX.
func ReceiptNumber(date civil.Date, suffix string) string {
	return fmt.Sprintf("RCP-%04d%02d%02d-%s", date.Year, int(date.Month), date.Day, strings.ToUpper(suffix))
}

func randomSuffix() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}

// PeriodStart picks where a new period begins. Coverage still running after
// today is continued seamlessly; otherwise the requested date or today is used.
func PeriodStart(coverageEnd *civil.Date, today civil.Date, requested *civil.Date) civil.Date {
	if coverageEnd != nil && coverageEnd.After(today) {
		return *coverageEnd
	}
	if requested != nil {
		return *requested
	}
	return today
}

// Recompute derives coverage end from the active periods alone. Periods are
// walked by start date; each runs from its own start or from the end of the
// coverage before it, whichever is later, so a lapse is never bridged and
// month-end clamps compound the way renewals produced them. Equal starts are
// ordered by duration, which makes the result depend only on the set of
// periods. Nil means no active period remains.
func Recompute(periods []Period) *civil.Date {
	active := make([]Period, 0, len(periods))
	for _, p := range periods {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	slices.SortFunc(active, func(a, b Period) int {
		if c := a.PeriodStart.Compare(b.PeriodStart); c != 0 {
			return c
		}
		return cmp.Compare(a.DurationMonths, b.DurationMonths)
	})
	cursor := active[0].PeriodStart
	for _, p := range active {
		if p.PeriodStart.After(cursor) {
			cursor = p.PeriodStart
		}
		cursor = clock.AddMonths(cursor, p.DurationMonths)
	}
	return &cursor
}
