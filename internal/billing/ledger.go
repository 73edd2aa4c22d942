package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// IdempotencyGuard rejects replayed payment submissions. shared.IdempotencyStore
// satisfies it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "billing.add_period"

// Ledger records and retracts billing periods, keeping each member's coverage
// consistent with the periods that remain active.
type Ledger struct {
	repo      Repository
	clock     clock.Clock
	audit     membership.AuditRecorder
	idem      IdempotencyGuard
	logger    *slog.Logger
	tracer    trace.Tracer
	newSuffix func() string
}

// NewLedger wires a Ledger. audit and idem may be nil.
func NewLedger(repo Repository, clk clock.Clock, audit membership.AuditRecorder, idem IdempotencyGuard, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		repo:      repo,
		clock:     clk,
		audit:     audit,
		idem:      idem,
		logger:    logger,
		tracer:    otel.Tracer("gymdesk/billing"),
		newSuffix: randomSuffix,
	}
}

// AddPeriod records a payment and extends coverage. Coverage is recomputed
// over every active period, the new one included, exactly as a retraction
// recomputes it.
func (l *Ledger) AddPeriod(ctx context.Context, in AddPeriodInput) (*Period, *membership.Member, error) {
	ctx, span := l.tracer.Start(ctx, "billing.add_period",
		trace.WithAttributes(
			attribute.Int64("member.id", in.MemberID),
			attribute.Int("duration.months", in.DurationMonths),
		),
	)
	defer span.End()

	if err := validatePayment(in); err != nil {
		return nil, nil, err
	}
	if err := l.claim(ctx, in.IdempotencyKey); err != nil {
		return nil, nil, err
	}
	today := l.clock.Today()
	receipt := ReceiptNumber(today, l.newSuffix())

	var (
		period *Period
		member *membership.Member
	)
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMember(ctx, in.MemberID)
		if err != nil {
			return err
		}
		membership.Classify(m, today)
		if m.Status == membership.StatusFrozen {
			return ErrMemberFrozen
		}
		prior := m.Status
		before := m.CoverageEnd

		start := PeriodStart(m.CoverageEnd, today, in.StartOn)
		p := &Period{
			MemberID:       m.ID,
			ReceiptNumber:  receipt,
			Amount:         in.Amount,
			Method:         strings.TrimSpace(in.Method),
			DurationMonths: in.DurationMonths,
			PeriodStart:    start,
			PeriodEnd:      clock.AddMonths(start, in.DurationMonths),
			Active:         true,
			Note:           strings.TrimSpace(in.Note),
			RecordedBy:     in.ActorID,
		}
		if err := tx.InsertPeriod(ctx, p); err != nil {
			return err
		}

		active, err := tx.ListActivePeriods(ctx, m.ID)
		if err != nil {
			return err
		}
		applyCoverage(m, Recompute(active))
		if m.MembershipStart == nil {
			m.MembershipStart = clock.Ptr(start)
		}
		membership.Classify(m, today)
		if err := tx.SaveLifecycle(ctx, m); err != nil {
			return err
		}
		event := membership.RenewalEvent(m, prior, before, p.ID, today)
		event.ActorID = in.ActorID
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}
		period, member = p, m
		return nil
	})
	if err != nil {
		l.release(ctx, in.IdempotencyKey)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	span.SetAttributes(attribute.String("receipt.number", period.ReceiptNumber))
	l.record(ctx, in.ActorID, "billing.period_added", period.ID, map[string]any{
		"member_id": period.MemberID,
		"receipt":   period.ReceiptNumber,
		"amount":    period.Amount,
		"months":    period.DurationMonths,
	})
	return period, member, nil
}

// RetractPeriod soft-deletes a period and recomputes coverage from the
// periods still active.
func (l *Ledger) RetractPeriod(ctx context.Context, in RetractInput) (*membership.Member, error) {
	ctx, span := l.tracer.Start(ctx, "billing.retract_period",
		trace.WithAttributes(attribute.Int64("period.id", in.PeriodID)),
	)
	defer span.End()

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: retraction reason is required", ErrInvalidPayment)
	}
	existing, err := l.repo.GetPeriod(ctx, in.PeriodID)
	if err != nil {
		return nil, err
	}
	today := l.clock.Today()
	now := l.clock.Now()

	var member *membership.Member
	err = l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// member row first, same lock order as AddPeriod
		m, err := tx.LockMember(ctx, existing.MemberID)
		if err != nil {
			return err
		}
		p, err := tx.LockPeriod(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if !p.Active {
			return ErrAlreadyRetracted
		}
		membership.Classify(m, today)
		if m.Status == membership.StatusFrozen {
			return ErrMemberFrozen
		}
		prior := m.Status
		before := m.CoverageEnd

		p.Active = false
		p.RetractReason = reason
		p.RetractedAt = &now
		if err := tx.SaveRetraction(ctx, p); err != nil {
			return err
		}
		remaining, err := tx.ListActivePeriods(ctx, m.ID)
		if err != nil {
			return err
		}
		applyCoverage(m, Recompute(remaining))
		membership.Classify(m, today)
		if err := tx.SaveLifecycle(ctx, m); err != nil {
			return err
		}
		event := membership.RetractionEvent(m, prior, before, p.ID, reason, today)
		event.ActorID = in.ActorID
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	l.record(ctx, in.ActorID, "billing.period_retracted", in.PeriodID, map[string]any{
		"member_id": member.ID,
		"reason":    reason,
	})
	return member, nil
}

// ListPeriods returns every period of a member, retracted ones included.
func (l *Ledger) ListPeriods(ctx context.Context, memberID int64) ([]Period, error) {
	return l.repo.ListPeriods(ctx, memberID)
}

// applyCoverage resets a member to pending when nothing is left to cover them.
func applyCoverage(m *membership.Member, end *civil.Date) {
	if end == nil {
		m.CoverageEnd = nil
		m.Status = membership.StatusPending
		m.PaymentState = membership.PaymentPending
		return
	}
	m.CoverageEnd = end
	m.PaymentState = membership.PaymentPaid
	if m.Status == membership.StatusPending {
		m.Status = membership.StatusActive
	}
}

func (l *Ledger) claim(ctx context.Context, key string) error {
	if l.idem == nil || key == "" {
		return nil
	}
	err := l.idem.CheckAndInsert(ctx, key, idempotencyModule)
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return ErrDuplicateRequest
	}
	return err
}

// release frees the key of a failed attempt so the client can retry it.
func (l *Ledger) release(ctx context.Context, key string) {
	if l.idem == nil || key == "" {
		return
	}
	if err := l.idem.Delete(ctx, key); err != nil {
		l.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func validatePayment(in AddPeriodInput) error {
	switch {
	case in.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	case in.DurationMonths < 1:
		return fmt.Errorf("%w: duration must be at least one month", ErrInvalidPayment)
	case strings.TrimSpace(in.Method) == "":
		return fmt.Errorf("%w: payment method is required", ErrInvalidPayment)
	}
	return nil
}

func (l *Ledger) record(ctx context.Context, actorID int64, action string, periodID int64, meta map[string]any) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "billing_period",
		EntityID: strconv.FormatInt(periodID, 10),
		Meta:     meta,
		At:       l.clock.Now().In(time.UTC),
	}); err != nil {
		l.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
