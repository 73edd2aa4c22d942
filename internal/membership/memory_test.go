package membership

import (
	"context"
	"sort"
	"sync"
)

type memoryRepo struct {
	mu      sync.Mutex
	members map[int64]Member
	events  []Event
	nextID  int64
	// staleOnSave makes SaveClassification report a concurrent update.
	staleOnSave bool
	saves       int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{members: make(map[int64]Member)}
}

func (r *memoryRepo) put(m Member) *Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	m.IsActive = true
	r.members[m.ID] = m
	return &m
}

func (r *memoryRepo) stored(id int64) Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id]
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetMember(ctx context.Context, id int64) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *memoryRepo) FindActiveByContact(ctx context.Context, phone, email string) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.IsActive && m.Phone == phone && m.Email == email {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) ListMembers(ctx context.Context, filter ListFilter) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Member
	for _, m := range r.members {
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Status]int)
	for _, m := range r.members {
		out[m.Status]++
	}
	return out, nil
}

func (r *memoryRepo) ListClassifiable(ctx context.Context) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Member
	for _, m := range r.members {
		if m.IsActive && !m.Status.IsSticky() && m.CoverageEnd != nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) ListHistory(ctx context.Context, memberID int64) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveClassification(ctx context.Context, m *Member, prevStatus Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[m.ID]
	if !ok || r.staleOnSave || cur.Status != prevStatus {
		return ErrStaleMember
	}
	cur.Status = m.Status
	cur.PaymentState = m.PaymentState
	r.members[m.ID] = cur
	r.saves++
	return nil
}

func (t *memoryTx) LockMember(ctx context.Context, id int64) (*Member, error) {
	return t.repo.GetMember(ctx, id)
}

func (t *memoryTx) InsertMember(ctx context.Context, m *Member) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, existing := range t.repo.members {
		if existing.IsActive && existing.Phone == m.Phone && existing.Email == m.Email {
			return ErrDuplicateContact
		}
	}
	t.repo.nextID++
	m.ID = t.repo.nextID
	m.IsActive = true
	t.repo.members[m.ID] = *m
	return nil
}

func (t *memoryTx) SaveLifecycle(ctx context.Context, m *Member) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.members[m.ID]; !ok {
		return ErrNotFound
	}
	t.repo.members[m.ID] = *m
	return nil
}

func (t *memoryTx) AppendEvent(ctx context.Context, e *Event) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	e.ID = int64(len(t.repo.events) + 1)
	t.repo.events = append(t.repo.events, *e)
	return nil
}

func (t *memoryTx) LatestEvent(ctx context.Context, memberID int64, kind EventKind) (*Event, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for i := len(t.repo.events) - 1; i >= 0; i-- {
		e := t.repo.events[i]
		if e.MemberID == memberID && e.Kind == kind {
			return &e, nil
		}
	}
	return nil, nil
}
