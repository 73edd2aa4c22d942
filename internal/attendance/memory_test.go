package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/schedule"
)

type dayKey struct {
	member int64
	day    civil.Date
}

type memoryAttendanceRepo struct {
	mu      sync.Mutex
	records map[dayKey]Record
	nextID  int64
	members []membership.Member

	// hideUntilInsert makes GetForDay miss so Insert hits the unique rule,
	// as when a concurrent check-in wins the race.
	hideUntilInsert bool
	failInsertAfter int
	absentCalls     int
}

func newMemoryAttendanceRepo() *memoryAttendanceRepo {
	return &memoryAttendanceRepo{records: make(map[dayKey]Record), failInsertAfter: -1}
}

func (r *memoryAttendanceRepo) GetForDay(ctx context.Context, memberID int64, day civil.Date) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideUntilInsert {
		return nil, ErrRecordNotFound
	}
	rec, ok := r.records[dayKey{memberID, day}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (r *memoryAttendanceRepo) Insert(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hideUntilInsert = false
	key := dayKey{rec.MemberID, rec.AttendedOn}
	if _, ok := r.records[key]; ok {
		return ErrAlreadyMarked
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	r.records[key] = *rec
	return nil
}

func (r *memoryAttendanceRepo) CountByStatus(ctx context.Context, from, to civil.Date) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Status]int)
	for k, rec := range r.records {
		if k.day.Before(from) || k.day.After(to) {
			continue
		}
		out[rec.Status]++
	}
	return out, nil
}

func (r *memoryAttendanceRepo) ListEligible(ctx context.Context, day civil.Date) ([]EligibleMember, error) {
	var out []EligibleMember
	for _, m := range r.members {
		if m.BatchID == nil || m.CoverageEnd == nil || m.CoverageEnd.Before(day) {
			continue
		}
		if m.Status != membership.StatusActive && m.Status != membership.StatusExpiringSoon {
			continue
		}
		out = append(out, EligibleMember{MemberID: m.ID, BatchID: *m.BatchID})
	}
	return out, nil
}

func (r *memoryAttendanceRepo) MarkedMemberIDs(ctx context.Context, day civil.Date) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for k := range r.records {
		if k.day == day {
			out = append(out, k.member)
		}
	}
	return out, nil
}

func (r *memoryAttendanceRepo) InsertAbsent(ctx context.Context, day civil.Date, members []EligibleMember) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsertAfter >= 0 && r.absentCalls >= r.failInsertAfter {
		return 0, errors.New("connection reset")
	}
	r.absentCalls++
	n := 0
	for _, m := range members {
		key := dayKey{m.MemberID, day}
		if _, ok := r.records[key]; ok {
			continue
		}
		batch := m.BatchID
		r.nextID++
		r.records[key] = Record{ID: r.nextID, MemberID: m.MemberID, BatchID: &batch, AttendedOn: day, Status: StatusAbsent, Note: SweepNote}
		n++
	}
	return n, nil
}

func (r *memoryAttendanceRepo) count(day civil.Date, status Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, rec := range r.records {
		if k.day == day && rec.Status == status {
			n++
		}
	}
	return n
}

type stubMembers struct {
	byContact map[string]membership.Member
	today     civil.Date
}

func newStubMembers(today civil.Date) *stubMembers {
	return &stubMembers{byContact: make(map[string]membership.Member), today: today}
}

func (s *stubMembers) add(m membership.Member) {
	s.byContact[m.Phone+"|"+m.Email] = m
}

func (s *stubMembers) FindForCheckIn(ctx context.Context, phone, email string) (*membership.Member, error) {
	m, ok := s.byContact[phone+"|"+email]
	if !ok {
		return nil, membership.ErrNotFound
	}
	membership.Classify(&m, s.today)
	return &m, nil
}

func (s *stubMembers) Get(ctx context.Context, id int64) (*membership.Member, error) {
	for _, m := range s.byContact {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, membership.ErrNotFound
}

type staticSchedule struct {
	sched *schedule.Schedule
	err   error
}

func (s staticSchedule) Load(ctx context.Context) (*schedule.Schedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sched, nil
}

type countingOutcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingOutcomes) ObserveCheckIn(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[outcome]++
}
