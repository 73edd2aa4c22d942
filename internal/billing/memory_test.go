package billing

import (
	"context"
	"sort"
	"time"

	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/shared"
)

type memoryLedgerRepo struct {
	members map[int64]membership.Member
	periods map[int64]Period
	events  []membership.Event
	nextID  int64
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		members: make(map[int64]membership.Member),
		periods: make(map[int64]Period),
	}
}

func (r *memoryLedgerRepo) addMember(m membership.Member) int64 {
	r.nextID++
	m.ID = r.nextID
	m.IsActive = true
	r.members[m.ID] = m
	return m.ID
}

func (r *memoryLedgerRepo) member(id int64) membership.Member {
	return r.members[id]
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryLedgerTx{repo: r})
}

func (r *memoryLedgerRepo) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return nil, ErrPeriodNotFound
	}
	return &p, nil
}

func (r *memoryLedgerRepo) ListPeriods(ctx context.Context, memberID int64) ([]Period, error) {
	return r.list(memberID, false), nil
}

func (r *memoryLedgerRepo) list(memberID int64, activeOnly bool) []Period {
	var out []Period
	for _, p := range r.periods {
		if p.MemberID != memberID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodStart == out[j].PeriodStart {
			return out[i].ID < out[j].ID
		}
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}

func (t *memoryLedgerTx) LockMember(ctx context.Context, id int64) (*membership.Member, error) {
	m, ok := t.repo.members[id]
	if !ok {
		return nil, membership.ErrNotFound
	}
	return &m, nil
}

func (t *memoryLedgerTx) InsertMember(ctx context.Context, m *membership.Member) error {
	m.ID = t.repo.addMember(*m)
	return nil
}

func (t *memoryLedgerTx) SaveLifecycle(ctx context.Context, m *membership.Member) error {
	if _, ok := t.repo.members[m.ID]; !ok {
		return membership.ErrNotFound
	}
	t.repo.members[m.ID] = *m
	return nil
}

func (t *memoryLedgerTx) AppendEvent(ctx context.Context, e *membership.Event) error {
	e.ID = int64(len(t.repo.events) + 1)
	t.repo.events = append(t.repo.events, *e)
	return nil
}

func (t *memoryLedgerTx) LatestEvent(ctx context.Context, memberID int64, kind membership.EventKind) (*membership.Event, error) {
	for i := len(t.repo.events) - 1; i >= 0; i-- {
		if e := t.repo.events[i]; e.MemberID == memberID && e.Kind == kind {
			return &e, nil
		}
	}
	return nil, nil
}

func (t *memoryLedgerTx) InsertPeriod(ctx context.Context, p *Period) error {
	for _, existing := range t.repo.periods {
		if existing.ReceiptNumber == p.ReceiptNumber {
			return ErrReceiptCollision
		}
	}
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.RecordedAt = time.Now()
	t.repo.periods[p.ID] = *p
	return nil
}

func (t *memoryLedgerTx) LockPeriod(ctx context.Context, id int64) (*Period, error) {
	return t.repo.GetPeriod(ctx, id)
}

func (t *memoryLedgerTx) SaveRetraction(ctx context.Context, p *Period) error {
	cur, ok := t.repo.periods[p.ID]
	if !ok || !cur.Active {
		return ErrAlreadyRetracted
	}
	t.repo.periods[p.ID] = *p
	return nil
}

func (t *memoryLedgerTx) ListActivePeriods(ctx context.Context, memberID int64) ([]Period, error) {
	return t.repo.list(memberID, true), nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}
