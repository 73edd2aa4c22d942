package billing

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/gymdesk/gymdesk/internal/clock"
)

func TestRecompute(t *testing.T) {
	assert.Nil(t, Recompute(nil))
	assert.Nil(t, Recompute([]Period{{PeriodStart: today, DurationMonths: 2, Active: false}}))

	got := Recompute([]Period{
		{PeriodStart: civil.Date{Year: 2026, Month: 4, Day: 10}, DurationMonths: 3, Active: true},
		{PeriodStart: civil.Date{Year: 2026, Month: 1, Day: 31}, DurationMonths: 1, Active: true},
		{PeriodStart: civil.Date{Year: 2025, Month: 1, Day: 1}, DurationMonths: 12, Active: false},
	})
	// Jan 31 runs to Feb 28, then the lapse until Apr 10 is not bridged
	assert.Equal(t, civil.Date{Year: 2026, Month: 7, Day: 10}, *got)
}

func TestRecomputeChainsClampedMonths(t *testing.T) {
	jan31 := civil.Date{Year: 2026, Month: 1, Day: 31}
	feb28 := civil.Date{Year: 2026, Month: 2, Day: 28}
	got := Recompute([]Period{
		{PeriodStart: feb28, DurationMonths: 1, Active: true},
		{PeriodStart: jan31, DurationMonths: 1, Active: true},
	})
	assert.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 28}, *got)
}

func TestRecomputeOverlappingStartsContinueFromCoverage(t *testing.T) {
	jan1 := civil.Date{Year: 2026, Month: 1, Day: 1}
	got := Recompute([]Period{
		{PeriodStart: jan1, DurationMonths: 2, Active: true},
		{PeriodStart: jan1.AddDays(10), DurationMonths: 1, Active: true},
	})
	assert.Equal(t, civil.Date{Year: 2026, Month: 4, Day: 1}, *got)
}

func TestPeriodStart(t *testing.T) {
	requested := today.AddDays(-3)
	assert.Equal(t, today, PeriodStart(nil, today, nil))
	assert.Equal(t, requested, PeriodStart(nil, today, &requested))
	assert.Equal(t, requested, PeriodStart(clock.Ptr(today), today, &requested), "coverage ending today is not continued")
	assert.Equal(t, today.AddDays(1), PeriodStart(clock.Ptr(today.AddDays(1)), today, &requested))
}

func genPeriods(t *rapid.T) []Period {
	n := rapid.IntRange(1, 8).Draw(t, "n")
	periods := make([]Period, n)
	for i := range periods {
		periods[i] = Period{
			ID:             int64(i + 1),
			PeriodStart:    today.AddDays(rapid.IntRange(-400, 400).Draw(t, "offset")),
			DurationMonths: rapid.IntRange(1, 12).Draw(t, "months"),
			Active:         rapid.Bool().Draw(t, "active"),
		}
	}
	return periods
}

func TestRecomputeIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		periods := genPeriods(t)
		shuffled := rapid.Permutation(periods).Draw(t, "shuffled")

		a, b := Recompute(periods), Recompute(shuffled)
		if (a == nil) != (b == nil) || (a != nil && *a != *b) {
			t.Fatalf("recompute differs by order: %v vs %v", a, b)
		}
	})
}

// Retracting the same set of periods in different orders through the ledger
// always ends on the coverage derived from the survivors alone.
func TestRetractionOrderDoesNotMatter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		months := rapid.SliceOfN(rapid.IntRange(1, 12), 2, 6).Draw(t, "months")
		retract := rapid.SliceOfNDistinct(rapid.IntRange(0, len(months)-1), 1, len(months), rapid.ID[int]).Draw(t, "retract")
		reordered := rapid.Permutation(retract).Draw(t, "reordered")

		run := func(order []int) (*civil.Date, []Period) {
			repo := newMemoryLedgerRepo()
			id := repo.addMember(pendingMember())
			l := newTestLedger(repo, today)
			ids := make([]int64, len(months))
			for i, m := range months {
				p, _, err := l.AddPeriod(context.Background(), payment(id, m))
				if err != nil {
					t.Fatalf("add period: %v", err)
				}
				ids[i] = p.ID
			}
			for _, idx := range order {
				if _, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: ids[idx], Reason: "test"}); err != nil {
					t.Fatalf("retract: %v", err)
				}
			}
			periods, _ := repo.ListPeriods(context.Background(), id)
			return repo.member(id).CoverageEnd, periods
		}

		endA, periods := run(retract)
		endB, _ := run(reordered)
		want := Recompute(periods)

		for _, got := range []*civil.Date{endA, endB} {
			if (got == nil) != (want == nil) || (got != nil && *got != *want) {
				t.Fatalf("coverage %v, want %v", got, want)
			}
		}
	})
}

func sameDate(a, b *civil.Date) bool {
	return (a == nil) == (b == nil) && (a == nil || *a == *b)
}

// Any mix of payments and retractions on any days leaves coverage equal to
// the recomputation over the periods still active.
func TestLedgerCoverageAlwaysMatchesRecompute(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo := newMemoryLedgerRepo()
		id := repo.addMember(pendingMember())
		l := newTestLedger(repo, today)
		day := today
		steps := rapid.IntRange(1, 12).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			active := repo.list(id, true)
			if len(active) > 0 && rapid.Bool().Draw(t, "retract") {
				victim := rapid.SampledFrom(active).Draw(t, "victim")
				if _, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: victim.ID, Reason: "test"}); err != nil {
					t.Fatalf("retract: %v", err)
				}
			} else {
				day = day.AddDays(rapid.IntRange(0, 70).Draw(t, "wait"))
				l.clock = clock.On(day, 11, 30, time.UTC)
				if _, _, err := l.AddPeriod(context.Background(), payment(id, rapid.IntRange(1, 3).Draw(t, "months"))); err != nil {
					t.Fatalf("add period: %v", err)
				}
			}
			got, want := repo.member(id).CoverageEnd, Recompute(repo.list(id, true))
			if !sameDate(got, want) {
				t.Fatalf("step %d: coverage %v, recomputed %v", i, got, want)
			}
		}
	})
}

// Payments made and then withdrawn leave no trace once the surviving periods
// are the same as in a history that never had them.
func TestWithdrawnPaymentsLeaveNoTrace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := civil.Date{Year: 2026, Month: 1, Day: rapid.IntRange(1, 31).Draw(t, "day")}
		kept := rapid.SliceOfN(rapid.IntRange(1, 3), 1, 4).Draw(t, "kept")
		waits := rapid.SliceOfN(rapid.IntRange(0, 60), len(kept), len(kept)).Draw(t, "waits")
		extra := rapid.SliceOfN(rapid.IntRange(1, 3), 1, 3).Draw(t, "extra")

		run := func(withExtra bool) *civil.Date {
			repo := newMemoryLedgerRepo()
			id := repo.addMember(pendingMember())
			l := newTestLedger(repo, start)
			day := start
			for i, months := range kept {
				day = day.AddDays(waits[i])
				l.clock = clock.On(day, 11, 30, time.UTC)
				if _, _, err := l.AddPeriod(context.Background(), payment(id, months)); err != nil {
					t.Fatalf("add period: %v", err)
				}
			}
			if withExtra {
				var ids []int64
				for _, months := range extra {
					p, _, err := l.AddPeriod(context.Background(), payment(id, months))
					if err != nil {
						t.Fatalf("add extra: %v", err)
					}
					ids = append(ids, p.ID)
				}
				for _, pid := range rapid.Permutation(ids).Draw(t, "order") {
					if _, err := l.RetractPeriod(context.Background(), RetractInput{PeriodID: pid, Reason: "refund"}); err != nil {
						t.Fatalf("retract: %v", err)
					}
				}
			}
			return repo.member(id).CoverageEnd
		}

		plain, withdrawn := run(false), run(true)
		if !sameDate(plain, withdrawn) {
			t.Fatalf("coverage %v after withdrawals, %v without", withdrawn, plain)
		}
	})
}
