package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/shared"
)

var today = civil.Date{Year: 2026, Month: 3, Day: 10}

func newTestLedger(repo *memoryLedgerRepo, on civil.Date) *Ledger {
	l := NewLedger(repo, clock.On(on, 11, 30, time.UTC), nil, newMemoryIdempotency(), nil)
	n := 0
	l.newSuffix = func() string {
		n++
		return fmt.Sprintf("%08x", n)
	}
	return l
}

func pendingMember() membership.Member {
	return membership.Member{
		Name:         "Ravi",
		Status:       membership.StatusPending,
		PaymentState: membership.PaymentPending,
		RegisteredOn: today,
	}
}

func payment(memberID int64, months int) AddPeriodInput {
	return AddPeriodInput{MemberID: memberID, Amount: 150000, DurationMonths: months, Method: "cash"}
}

func TestReceiptNumber(t *testing.T) {
	assert.Equal(t, "RCP-20260310-A1B2C3D4", ReceiptNumber(today, "a1b2c3d4"))
	assert.Len(t, randomSuffix(), 8)
}

func TestAddPeriodActivatesPendingMember(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)

	p, m, err := l.AddPeriod(context.Background(), payment(id, 3))
	require.NoError(t, err)
	assert.Equal(t, "RCP-20260310-00000001", p.ReceiptNumber)
	assert.Equal(t, today, p.PeriodStart)
	assert.Equal(t, civil.Date{Year: 2026, Month: 6, Day: 10}, p.PeriodEnd)
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, membership.PaymentPaid, m.PaymentState)
	assert.Equal(t, p.PeriodEnd, *m.CoverageEnd)
	assert.Equal(t, today, *m.MembershipStart)

	require.Len(t, repo.events, 1)
	assert.Equal(t, membership.EventRenewal, repo.events[0].Kind)
	assert.Equal(t, membership.StatusPending, repo.events[0].PriorStatus)
	assert.Nil(t, repo.events[0].CoverageEndBefore)
}

func TestAddPeriodRenewsSeamlessly(t *testing.T) {
	repo := newMemoryLedgerRepo()
	end := today.AddDays(5)
	id := repo.addMember(membership.Member{
		Status:          membership.StatusExpiringSoon,
		PaymentState:    membership.PaymentPaid,
		CoverageEnd:     clock.Ptr(end),
		MembershipStart: clock.Ptr(civil.Date{Year: 2026, Month: 1, Day: 1}),
	})
	l := newTestLedger(repo, today)

	p, m, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	assert.Equal(t, end, p.PeriodStart)
	assert.Equal(t, clock.AddMonths(end, 1), *m.CoverageEnd)
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, civil.Date{Year: 2026, Month: 1, Day: 1}, *m.MembershipStart)
}

func TestAddPeriodAfterLapseStartsToday(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(membership.Member{
		Status:       membership.StatusExpired,
		PaymentState: membership.PaymentOverdue,
		CoverageEnd:  clock.Ptr(today.AddDays(-12)),
	})
	l := newTestLedger(repo, today)

	p, m, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	assert.Equal(t, today, p.PeriodStart)
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, membership.PaymentPaid, m.PaymentState)
}

func TestAddPeriodClampsMonthEnd(t *testing.T) {
	jan31 := civil.Date{Year: 2026, Month: 1, Day: 31}
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, jan31)

	p, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2026, Month: 2, Day: 28}, p.PeriodEnd)
}

func TestAddPeriodShortPeriodIsExpiringSoon(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	start := today.AddDays(-28)
	in := payment(id, 1)
	in.StartOn = &start

	_, m, err := l.AddPeriod(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusExpiringSoon, m.Status)
}

func TestAddPeriodValidation(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)

	cases := map[string]AddPeriodInput{
		"zero amount":   {MemberID: id, Amount: 0, DurationMonths: 1, Method: "cash"},
		"zero months":   {MemberID: id, Amount: 10, DurationMonths: 0, Method: "cash"},
		"blank method":  {MemberID: id, Amount: 10, DurationMonths: 1, Method: " "},
		"negative cash": {MemberID: id, Amount: -5, DurationMonths: 1, Method: "cash"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := l.AddPeriod(context.Background(), in)
			assert.ErrorIs(t, err, shared.ErrBadRequest)
		})
	}
	assert.Empty(t, repo.periods)
}

func TestAddPeriodRejectsFrozenMember(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(membership.Member{
		Status:       membership.StatusFrozen,
		PaymentState: membership.PaymentPaid,
		CoverageEnd:  clock.Ptr(today.AddDays(20)),
	})
	l := newTestLedger(repo, today)

	_, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	assert.ErrorIs(t, err, ErrMemberFrozen)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestAddPeriodReceiptCollision(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	l.newSuffix = func() string { return "deadbeef" }

	_, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	_, _, err = l.AddPeriod(context.Background(), payment(id, 1))
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestAddPeriodIdempotencyKey(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	in := payment(id, 1)
	in.IdempotencyKey = "pay-1"

	_, _, err := l.AddPeriod(context.Background(), in)
	require.NoError(t, err)
	_, _, err = l.AddPeriod(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Len(t, repo.periods, 1)
}

func TestAddPeriodReleasesKeyOnFailure(t *testing.T) {
	repo := newMemoryLedgerRepo()
	l := newTestLedger(repo, today)
	in := payment(404, 1)
	in.IdempotencyKey = "pay-2"

	_, _, err := l.AddPeriod(context.Background(), in)
	require.ErrorIs(t, err, membership.ErrNotFound)

	id := repo.addMember(pendingMember())
	in.MemberID = id
	_, _, err = l.AddPeriod(context.Background(), in)
	assert.NoError(t, err)
}

func TestRetractOnlyPeriodResetsToPending(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	p, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)

	m, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: p.ID, Reason: "bounced"})
	require.NoError(t, err)
	assert.Nil(t, m.CoverageEnd)
	assert.Equal(t, membership.StatusPending, m.Status)
	assert.Equal(t, membership.PaymentPending, m.PaymentState)
	assert.False(t, repo.periods[p.ID].Active)
	assert.Equal(t, "bounced", repo.periods[p.ID].RetractReason)

	last := repo.events[len(repo.events)-1]
	assert.Equal(t, membership.EventRetraction, last.Kind)
	assert.Equal(t, p.PeriodEnd, *last.CoverageEndBefore)
	assert.Nil(t, last.CoverageEndAfter)
}

func TestRetractRecomputesFromRemaining(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	first, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	second, _, err := l.AddPeriod(context.Background(), payment(id, 3))
	require.NoError(t, err)
	assert.Equal(t, first.PeriodEnd, second.PeriodStart)

	m, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: first.ID, Reason: "refund"})
	require.NoError(t, err)
	// remaining: 3 months from the second period's start
	assert.Equal(t, clock.AddMonths(second.PeriodStart, 3), *m.CoverageEnd)
	assert.Equal(t, membership.StatusActive, m.Status)

	m, err = l.RetractPeriod(context.Background(), RetractInput{PeriodID: second.ID, Reason: "refund"})
	require.NoError(t, err)
	assert.Nil(t, m.CoverageEnd)
}

func TestRetractTwice(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	p, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)

	_, err = l.RetractPeriod(context.Background(), RetractInput{PeriodID: p.ID, Reason: "dup"})
	require.NoError(t, err)
	_, err = l.RetractPeriod(context.Background(), RetractInput{PeriodID: p.ID, Reason: "dup"})
	assert.ErrorIs(t, err, ErrAlreadyRetracted)
}

func TestRetractValidation(t *testing.T) {
	l := newTestLedger(newMemoryLedgerRepo(), today)
	_, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: 1})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = l.RetractPeriod(context.Background(), RetractInput{PeriodID: 1, Reason: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRetractRejectsFrozenMember(t *testing.T) {
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, today)
	p, _, err := l.AddPeriod(context.Background(), payment(id, 2))
	require.NoError(t, err)

	m := repo.member(id)
	m.Status = membership.StatusFrozen
	repo.members[id] = m

	_, err = l.RetractPeriod(context.Background(), RetractInput{PeriodID: p.ID, Reason: "x"})
	assert.ErrorIs(t, err, ErrMemberFrozen)
	assert.True(t, repo.periods[p.ID].Active)
}

func TestRenewalAfterLapseSurvivesUnrelatedRetraction(t *testing.T) {
	jan1 := civil.Date{Year: 2026, Month: 1, Day: 1}
	mar15 := civil.Date{Year: 2026, Month: 3, Day: 15}
	repo := newMemoryLedgerRepo()
	id := repo.addMember(pendingMember())
	l := newTestLedger(repo, jan1)

	_, _, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	l.clock = clock.On(mar15, 9, 0, time.UTC)
	renewal, m, err := l.AddPeriod(context.Background(), payment(id, 1))
	require.NoError(t, err)
	assert.Equal(t, mar15, renewal.PeriodStart)
	assert.Equal(t, civil.Date{Year: 2026, Month: 4, Day: 15}, *m.CoverageEnd)
	assert.Equal(t, *Recompute(repo.list(id, true)), *m.CoverageEnd)

	extra, _, err := l.AddPeriod(context.Background(), payment(id, 2))
	require.NoError(t, err)
	m2, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: extra.ID, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2026, Month: 4, Day: 15}, *m2.CoverageEnd)
}

func TestClampedRenewalsMatchAfterWithdrawal(t *testing.T) {
	jan31 := civil.Date{Year: 2026, Month: 1, Day: 31}
	coverage := func(payments int, retractLast bool) civil.Date {
		repo := newMemoryLedgerRepo()
		id := repo.addMember(pendingMember())
		l := newTestLedger(repo, jan31)
		var last *Period
		for i := 0; i < payments; i++ {
			p, _, err := l.AddPeriod(context.Background(), payment(id, 1))
			require.NoError(t, err)
			last = p
		}
		if retractLast {
			_, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: last.ID, Reason: "refund"})
			require.NoError(t, err)
		}
		return *repo.member(id).CoverageEnd
	}

	want := civil.Date{Year: 2026, Month: 3, Day: 28}
	assert.Equal(t, want, coverage(2, false))
	assert.Equal(t, want, coverage(3, true))
}
