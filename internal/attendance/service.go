package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// maxSummaryDays bounds summary date ranges.
const maxSummaryDays = 366

// MemberGetter loads members for staff marking.
type MemberGetter interface {
	Get(ctx context.Context, id int64) (*membership.Member, error)
}

// Summary counts records by status over an inclusive date range.
type Summary struct {
	From   civil.Date     `json:"from"`
	To     civil.Date     `json:"to"`
	Counts map[Status]int `json:"counts"`
	Total  int            `json:"total"`
}

// Service covers staff-facing attendance operations.
type Service struct {
	repo    Repository
	members MemberGetter
	clock   clock.Clock
	audit   membership.AuditRecorder
	logger  *slog.Logger
}

// NewService wires the staff attendance service. audit may be nil.
func NewService(repo Repository, members MemberGetter, clk clock.Clock, audit membership.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, members: members, clock: clk, audit: audit, logger: logger}
}

// Mark records attendance on behalf of a member. Any status may be set; the
// one-record-per-day rule applies as for self check-in.
func (s *Service) Mark(ctx context.Context, in MarkInput) (*Record, error) {
	if !in.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidMark, in.Status)
	}
	if in.ActorID <= 0 {
		return nil, fmt.Errorf("%w: staff id is required", ErrInvalidMark)
	}
	today := s.clock.Today()
	day := today
	if in.Date != nil {
		day = *in.Date
	}
	if day.After(today) {
		return nil, fmt.Errorf("%w: cannot mark a future date", ErrInvalidMark)
	}

	m, err := s.members.Get(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	actor := in.ActorID
	rec := &Record{
		MemberID:   m.ID,
		BatchID:    m.BatchID,
		AttendedOn: day,
		Status:     in.Status,
		MarkedBy:   &actor,
		Note:       strings.TrimSpace(in.Note),
	}
	if day == today && (in.Status == StatusPresent || in.Status == StatusLate) {
		now := s.clock.Now()
		rec.CheckInTime = &now
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			if existing, getErr := s.repo.GetForDay(ctx, m.ID, day); getErr == nil {
				return nil, duplicateRejection(existing)
			}
		}
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "attendance.marked",
			Entity:   "attendance_record",
			EntityID: strconv.FormatInt(rec.ID, 10),
			Meta:     map[string]any{"member_id": m.ID, "status": rec.Status, "date": day.String()},
		}); err != nil {
			s.logger.Warn("audit record", slog.Any("error", err))
		}
	}
	return rec, nil
}

// Summary counts records by status between from and to inclusive. Zero dates
// default to today.
func (s *Service) Summary(ctx context.Context, from, to civil.Date) (*Summary, error) {
	today := s.clock.Today()
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = today
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes start", shared.ErrBadRequest)
	}
	if clock.DaysBetween(from, to) >= maxSummaryDays {
		return nil, fmt.Errorf("%w: range exceeds %d days", shared.ErrBadRequest, maxSummaryDays)
	}
	counts, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sum := &Summary{From: from, To: to, Counts: counts}
	for _, n := range counts {
		sum.Total += n
	}
	return sum, nil
}
