package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/schedule"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// MemberFinder resolves and reclassifies the member claiming a check-in.
type MemberFinder interface {
	FindForCheckIn(ctx context.Context, phone, email string) (*membership.Member, error)
}

// ScheduleSource provides the current batch schedule.
type ScheduleSource interface {
	Load(ctx context.Context) (*schedule.Schedule, error)
}

// OutcomeRecorder counts check-in outcomes. observability.Metrics satisfies it.
type OutcomeRecorder interface {
	ObserveCheckIn(outcome string)
}

// GateConfig holds the facility-specific admission parameters.
type GateConfig struct {
	Geofence          Geofence
	TrialDays         int
	EscalationContact string
}

// CheckInInput is a self check-in attempt.
type CheckInInput struct {
	Phone     string
	Email     string
	Latitude  float64
	Longitude float64
}

// MemberSummary is the membership standing reported back to the member.
type MemberSummary struct {
	ID           int64                   `json:"id"`
	Name         string                  `json:"name"`
	Status       membership.Status       `json:"status"`
	PaymentState membership.PaymentState `json:"payment_state"`
	CoverageEnd  *civil.Date             `json:"coverage_end,omitempty"`
}

// BatchSummary describes the member's batch.
type BatchSummary struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
	Label     string             `json:"label"`
}

// TrialInfo reports progress through the unpaid trial.
type TrialInfo struct {
	DaysPassed    int    `json:"days_passed"`
	DaysRemaining int    `json:"days_remaining"`
	Message       string `json:"message"`
}

// LateWarning accompanies a late check-in.
type LateWarning struct {
	Message           string `json:"message"`
	EscalationContact string `json:"escalation_contact,omitempty"`
}

// ExpiryWarning is raised during the last week of coverage.
type ExpiryWarning struct {
	DaysLeft    int        `json:"days_left"`
	CoverageEnd civil.Date `json:"coverage_end"`
	Message     string     `json:"message"`
}

// CheckInResult is returned for an admitted check-in.
type CheckInResult struct {
	Member          MemberSummary  `json:"member"`
	Batch           BatchSummary   `json:"batch"`
	Record          *Record        `json:"record"`
	DistanceMeters  float64        `json:"distance_meters"`
	CheckInTime     string         `json:"check_in_time"`
	TrialWarning    *TrialInfo     `json:"trial_warning,omitempty"`
	LateWarning     *LateWarning   `json:"late_warning,omitempty"`
	BirthdayMessage string         `json:"birthday_message,omitempty"`
	ExpiryWarning   *ExpiryWarning `json:"expiry_warning,omitempty"`
}

// CheckInGate runs the ordered admission checks and writes the day's record.
type CheckInGate struct {
	members  MemberFinder
	schedule ScheduleSource
	repo     Repository
	clock    clock.Clock
	cfg      GateConfig
	outcomes OutcomeRecorder
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewCheckInGate wires the gate. outcomes may be nil.
func NewCheckInGate(members MemberFinder, sched ScheduleSource, repo Repository, clk clock.Clock, cfg GateConfig, outcomes OutcomeRecorder, logger *slog.Logger) *CheckInGate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = 3
	}
	return &CheckInGate{
		members:  members,
		schedule: sched,
		repo:     repo,
		clock:    clk,
		cfg:      cfg,
		outcomes: outcomes,
		tracer:   otel.Tracer("gymdesk/attendance"),
		logger:   logger,
	}
}

// CheckIn admits or rejects a member standing at the facility. Rejections are
// returned as *Rejection.
func (g *CheckInGate) CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	ctx, span := g.tracer.Start(ctx, "attendance.check_in")
	defer span.End()

	res, err := g.checkIn(ctx, in)
	outcome := ""
	var rej *Rejection
	switch {
	case err == nil:
		outcome = string(res.Record.Status)
		span.SetAttributes(attribute.Int64("member.id", res.Member.ID))
	case errors.As(err, &rej):
		outcome = "rejected_" + string(rej.Gate)
	default:
		outcome = "error"
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("checkin.outcome", outcome))
	if g.outcomes != nil {
		g.outcomes.ObserveCheckIn(outcome)
	}
	return res, err
}

func (g *CheckInGate) checkIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	now := g.clock.Now()
	today := civil.DateOf(now)

	// 1. identity
	m, err := g.members.FindForCheckIn(ctx, in.Phone, in.Email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, reject(GateIdentity, shared.ErrNotFound, nil,
			"No active membership matches this phone number and email. Please check your details or ask at the front desk.")
	}
	if err != nil {
		return nil, err
	}

	// 2. membership block
	if rej := membershipBlock(m); rej != nil {
		return nil, rej
	}

	// 3. trial
	var trial *TrialInfo
	if m.Status == membership.StatusPending {
		trial, err = g.trialGate(m, today)
		if err != nil {
			return nil, err
		}
	}

	// 4. geofence
	distance, inside := g.cfg.Geofence.Check(Point{Latitude: in.Latitude, Longitude: in.Longitude})
	if !inside {
		return nil, reject(GateGeofence, shared.ErrForbidden,
			map[string]any{"distance_meters": distance, "radius_meters": g.cfg.Geofence.RadiusMeters},
			"You are %.0f meters away from the facility. Self check-in is only available within %.0f meters.",
			distance, g.cfg.Geofence.RadiusMeters)
	}

	// 5. batch assignment
	if m.BatchID == nil {
		return nil, reject(GateBatch, shared.ErrBadRequest, nil,
			"No batch is assigned to your membership. Please ask the front desk to assign one.")
	}
	sched, err := g.schedule.Load(ctx)
	if err != nil {
		return nil, err
	}
	own, ok := sched.Get(*m.BatchID)
	if !ok {
		return nil, reject(GateBatch, shared.ErrBadRequest, map[string]any{"batch_id": *m.BatchID},
			"Your assigned batch no longer exists. Please ask the front desk to assign a new one.")
	}

	// 6. facility hours
	at := schedule.At(now)
	hours, open := sched.Hours()
	if !open || !hours.Contains(at) {
		data := map[string]any{"now": at}
		msg := "The facility is closed right now."
		if open {
			data["opens_at"] = hours.Open
			data["closes_at"] = hours.Close
			msg = fmt.Sprintf("The facility is closed right now. It opens at %s.", hours.Open.Display())
		}
		return nil, reject(GateFacilityHours, shared.ErrForbidden, data, "%s", msg)
	}

	// 7. some batch running
	if len(sched.Running(at)) == 0 {
		data := map[string]any{"now": at}
		msg := "No batch is running right now."
		if next, ok := sched.NextStart(at); ok {
			data["next_batch"] = next.Name
			data["next_start"] = next.Start
			msg = fmt.Sprintf("No batch is running right now. The next batch, %s, starts at %s.", next.Name, next.Start.Display())
		}
		return nil, reject(GateBatchRunning, shared.ErrForbidden, data, "%s", msg)
	}

	// 8. duplicate
	existing, err := g.repo.GetForDay(ctx, m.ID, today)
	switch {
	case err == nil:
		return nil, duplicateRejection(existing)
	case !errors.Is(err, ErrRecordNotFound):
		return nil, err
	}

	// 9. determination and write
	status := StatusLate
	if own.Contains(at) {
		status = StatusPresent
	}
	rec := &Record{
		MemberID:    m.ID,
		BatchID:     m.BatchID,
		AttendedOn:  today,
		Status:      status,
		CheckInTime: &now,
	}
	if err := g.repo.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			return nil, g.raceLost(ctx, m.ID, today)
		}
		return nil, err
	}

	g.logger.Info("member checked in",
		slog.Int64("member_id", m.ID),
		slog.String("status", string(status)),
		slog.Float64("distance_m", distance))

	return g.compose(m, own, rec, distance, trial, today, at), nil
}

func membershipBlock(m *membership.Member) *Rejection {
	switch m.Status {
	case membership.StatusExpired:
		data := map[string]any{"status": m.Status}
		if m.CoverageEnd != nil {
			data["coverage_end"] = *m.CoverageEnd
			return reject(GateMembership, shared.ErrForbidden, data,
				"Your membership expired on %s. Please renew at the front desk to continue training.", *m.CoverageEnd)
		}
		return reject(GateMembership, shared.ErrForbidden, data,
			"Your membership has expired. Please renew at the front desk to continue training.")
	case membership.StatusFrozen:
		data := map[string]any{"status": m.Status}
		if m.FreezeStart != nil {
			data["freeze_start"] = *m.FreezeStart
		}
		return reject(GateMembership, shared.ErrForbidden, data,
			"Your membership is frozen. Please ask the front desk to resume it before checking in.")
	}
	return nil
}

func (g *CheckInGate) trialGate(m *membership.Member, today civil.Date) (*TrialInfo, error) {
	passed := clock.DaysBetween(m.RegisteredOn, today) + 1
	if passed > g.cfg.TrialDays {
		ended := m.RegisteredOn.AddDays(g.cfg.TrialDays - 1)
		return nil, reject(GateTrial, shared.ErrForbidden,
			map[string]any{"days_passed": passed, "trial_days": g.cfg.TrialDays, "trial_ended": ended},
			"Your %d-day trial ended on %s. Please complete your payment to continue.", g.cfg.TrialDays, ended)
	}
	remaining := g.cfg.TrialDays - passed
	return &TrialInfo{
		DaysPassed:    passed,
		DaysRemaining: remaining,
		Message:       fmt.Sprintf("Trial day %d of %d. %d day(s) left before payment is required.", passed, g.cfg.TrialDays, remaining),
	}, nil
}

func duplicateRejection(existing *Record) *Rejection {
	data := map[string]any{"status": existing.Status, "record_id": existing.ID}
	when := ""
	if existing.CheckInTime != nil {
		data["check_in_time"] = *existing.CheckInTime
		when = " at " + schedule.At(*existing.CheckInTime).Display()
	}
	marker := "self check-in"
	if existing.MarkedBy != nil {
		data["marked_by"] = *existing.MarkedBy
		marker = "staff"
	}
	return reject(GateDuplicate, shared.ErrConflict, data,
		"Attendance is already recorded for today: %s%s (%s).", existing.Status, when, marker)
}

// raceLost reports a concurrent insert exactly like the duplicate gate.
func (g *CheckInGate) raceLost(ctx context.Context, memberID int64, day civil.Date) error {
	existing, err := g.repo.GetForDay(ctx, memberID, day)
	if err != nil {
		return reject(GateDuplicate, shared.ErrConflict, nil, "Attendance is already recorded for today.")
	}
	return duplicateRejection(existing)
}

func (g *CheckInGate) compose(m *membership.Member, own schedule.Batch, rec *Record, distance float64, trial *TrialInfo, today civil.Date, at schedule.TimeOfDay) *CheckInResult {
	res := &CheckInResult{
		Member: MemberSummary{
			ID:           m.ID,
			Name:         m.Name,
			Status:       m.Status,
			PaymentState: m.PaymentState,
			CoverageEnd:  m.CoverageEnd,
		},
		Batch: BatchSummary{
			ID:        own.ID,
			Name:      own.Name,
			StartTime: own.Start,
			EndTime:   own.End,
			Label:     own.Label(),
		},
		Record:         rec,
		DistanceMeters: distance,
		CheckInTime:    at.Display(),
		TrialWarning:   trial,
	}
	if rec.Status == StatusLate {
		res.LateWarning = &LateWarning{
			Message:           fmt.Sprintf("You checked in outside your batch %s and were marked late.", own.Label()),
			EscalationContact: g.cfg.EscalationContact,
		}
		if g.cfg.EscalationContact != "" {
			res.LateWarning.Message += " If this is wrong, contact " + g.cfg.EscalationContact + "."
		}
	}
	if m.HasBirthday(today) {
		res.BirthdayMessage = fmt.Sprintf("Happy birthday, %s! Have a great workout.", cases.Title(language.English).String(m.Name))
	}
	if days, ok := membership.Expiring(m, today); ok {
		res.ExpiryWarning = &ExpiryWarning{
			DaysLeft:    days,
			CoverageEnd: *m.CoverageEnd,
			Message:     expiryMessage(days, *m.CoverageEnd),
		}
	}
	return res
}

func expiryMessage(days int, end civil.Date) string {
	switch days {
	case 0:
		return fmt.Sprintf("Your membership ends today (%s). Please renew to keep training.", end)
	case 1:
		return fmt.Sprintf("Your membership ends tomorrow (%s). Please renew soon.", end)
	default:
		return fmt.Sprintf("Your membership ends in %d days (%s). Please renew soon.", days, end)
	}
}
