package membership

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/gymdesk/gymdesk/internal/clock"
)

// Freeze pauses a membership. Coverage end is left as is and captured in the
// freeze history entry so Unfreeze can restore it.
func (s *Service) Freeze(ctx context.Context, in FreezeInput) (*Member, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: freeze reason is required", ErrInvalidInput)
	}
	if in.ExpectedDays != nil && *in.ExpectedDays < 0 {
		return nil, fmt.Errorf("%w: expected duration cannot be negative", ErrInvalidInput)
	}
	today := s.clock.Today()

	var out *Member
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMember(ctx, in.MemberID)
		if err != nil {
			return err
		}
		Classify(m, today)
		if !m.Status.CanFreeze() {
			return fmt.Errorf("%w (status %s)", ErrCannotFreeze, m.Status)
		}

		prior := m.Status
		start := today
		if in.StartOn != nil {
			start = *in.StartOn
		}
		var expectedEnd *civil.Date
		if in.ExpectedDays != nil {
			expectedEnd = clock.Ptr(start.AddDays(*in.ExpectedDays))
		}

		m.Status = StatusFrozen
		m.FreezeStart = clock.Ptr(start)
		m.FreezeEnd = expectedEnd
		m.FreezeReason = reason
		if err := tx.SaveLifecycle(ctx, m); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &Event{
			MemberID:          m.ID,
			Kind:              EventFreeze,
			OccurredOn:        today,
			PriorStatus:       prior,
			CoverageEndBefore: m.CoverageEnd,
			CoverageEndAfter:  m.CoverageEnd,
			FreezeStart:       m.FreezeStart,
			ExpectedFreezeEnd: expectedEnd,
			Reason:            reason,
			ActorID:           in.ActorID,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.ActorID, "member.frozen", in.MemberID, map[string]any{"reason": reason})
	return out, nil
}

// Unfreeze resumes a frozen membership, extending the coverage captured at
// freeze time by the days spent frozen plus any goodwill extra days.
func (s *Service) Unfreeze(ctx context.Context, in UnfreezeInput) (*Member, error) {
	if in.ExtraDays < 0 {
		return nil, fmt.Errorf("%w: extra days cannot be negative", ErrInvalidInput)
	}
	today := s.clock.Today()

	var out *Member
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMember(ctx, in.MemberID)
		if err != nil {
			return err
		}
		if m.Status != StatusFrozen {
			return fmt.Errorf("%w (status %s)", ErrNotFrozen, m.Status)
		}
		freeze, err := tx.LatestEvent(ctx, m.ID, EventFreeze)
		if err != nil {
			return err
		}
		if freeze == nil || freeze.CoverageEndBefore == nil {
			return ErrNoFreezeRecord
		}

		res := ResumeCoverage(*freeze.CoverageEndBefore, freezeStartOf(m, freeze), today, in.ExtraDays)
		before := m.CoverageEnd
		m.CoverageEnd = clock.Ptr(res.CoverageEnd)
		m.FreezeEnd = clock.Ptr(today)
		m.Status = freeze.PriorStatus
		if m.Status.IsSticky() || !m.Status.IsValid() {
			m.Status = StatusActive
		}
		Classify(m, today)

		if err := tx.SaveLifecycle(ctx, m); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &Event{
			MemberID:          m.ID,
			Kind:              EventUnfreeze,
			OccurredOn:        today,
			PriorStatus:       StatusFrozen,
			CoverageEndBefore: before,
			CoverageEndAfter:  m.CoverageEnd,
			FreezeStart:       m.FreezeStart,
			DaysFrozen:        res.DaysFrozen,
			ExtraDays:         in.ExtraDays,
			ActorID:           in.ActorID,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.ActorID, "member.unfrozen", in.MemberID, map[string]any{"extra_days": in.ExtraDays})
	return out, nil
}

// Resumption is the coverage outcome of ending a freeze.
type Resumption struct {
	DaysFrozen  int
	CoverageEnd civil.Date
}

// ResumeCoverage extends the captured coverage end by the whole days frozen
// (zero for a freeze scheduled to start in the future) plus extraDays.
func ResumeCoverage(captured, freezeStart, today civil.Date, extraDays int) Resumption {
	days := clock.DaysBetween(freezeStart, today)
	if days < 0 {
		days = 0
	}
	return Resumption{DaysFrozen: days, CoverageEnd: captured.AddDays(days + extraDays)}
}

func freezeStartOf(m *Member, e *Event) civil.Date {
	switch {
	case m.FreezeStart != nil:
		return *m.FreezeStart
	case e.FreezeStart != nil:
		return *e.FreezeStart
	default:
		return e.OccurredOn
	}
}
