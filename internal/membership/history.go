package membership

import (
	"time"

	"cloud.google.com/go/civil"
)

// EventKind tags a lifecycle history entry.
type EventKind string

const (
	EventRegistration EventKind = "registration"
	EventRenewal      EventKind = "renewal"
	EventRetraction   EventKind = "retraction"
	EventFreeze       EventKind = "freeze"
	EventUnfreeze     EventKind = "unfreeze"
)

// Event is one immutable entry of a member's lifecycle history. Fields that do
// not apply to a kind stay zero.
type Event struct {
	ID                int64       `json:"id"`
	MemberID          int64       `json:"member_id"`
	Kind              EventKind   `json:"kind"`
	OccurredOn        civil.Date  `json:"occurred_on"`
	PriorStatus       Status      `json:"prior_status"`
	CoverageEndBefore *civil.Date `json:"coverage_end_before,omitempty"`
	CoverageEndAfter  *civil.Date `json:"coverage_end_after,omitempty"`
	PeriodID          *int64      `json:"period_id,omitempty"`
	FreezeStart       *civil.Date `json:"freeze_start,omitempty"`
	ExpectedFreezeEnd *civil.Date `json:"expected_freeze_end,omitempty"`
	Reason            string      `json:"reason,omitempty"`
	DaysFrozen        int         `json:"days_frozen,omitempty"`
	ExtraDays         int         `json:"extra_days,omitempty"`
	ActorID           int64       `json:"actor_id,omitempty"`
	RecordedAt        time.Time   `json:"recorded_at"`
}

// RenewalEvent records a billing period extending coverage.
func RenewalEvent(m *Member, prior Status, before *civil.Date, periodID int64, today civil.Date) *Event {
	return &Event{
		MemberID:          m.ID,
		Kind:              EventRenewal,
		OccurredOn:        today,
		PriorStatus:       prior,
		CoverageEndBefore: before,
		CoverageEndAfter:  m.CoverageEnd,
		PeriodID:          &periodID,
	}
}

// RetractionEvent records a billing period being withdrawn.
func RetractionEvent(m *Member, prior Status, before *civil.Date, periodID int64, reason string, today civil.Date) *Event {
	return &Event{
		MemberID:          m.ID,
		Kind:              EventRetraction,
		OccurredOn:        today,
		PriorStatus:       prior,
		CoverageEndBefore: before,
		CoverageEndAfter:  m.CoverageEnd,
		PeriodID:          &periodID,
		Reason:            reason,
	}
}

// LatestOf returns the most recent event of kind, or nil.
func LatestOf(events []Event, kind EventKind) *Event {
	var latest *Event
	for i := range events {
		if events[i].Kind != kind {
			continue
		}
		if latest == nil || events[i].ID > latest.ID {
			latest = &events[i]
		}
	}
	return latest
}
