package attendance

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/shared"
)

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newStaffService(t *testing.T) (*Service, *memoryAttendanceRepo, *stubMembers, *recordingAudit) {
	t.Helper()
	repo := newMemoryAttendanceRepo()
	members := newStubMembers(today)
	audit := &recordingAudit{}
	svc := NewService(repo, members, clock.On(today, 10, 15, time.UTC), audit, nil)
	return svc, repo, members, audit
}

func TestMarkRecordsStaffAttendance(t *testing.T) {
	svc, repo, members, audit := newStaffService(t)
	m := activeMember(morningBatch)
	m.ID = 4
	members.add(m)

	rec, err := svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusPresent, ActorID: 2, Note: " walked in "})
	require.NoError(t, err)
	require.NotNil(t, rec.MarkedBy)
	assert.Equal(t, int64(2), *rec.MarkedBy)
	assert.Equal(t, "walked in", rec.Note)
	assert.NotNil(t, rec.CheckInTime)
	assert.Equal(t, morningBatch, *rec.BatchID)
	assert.Equal(t, 1, repo.count(today, StatusPresent))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "attendance.marked", audit.logs[0].Action)
}

func TestMarkPastDayExcused(t *testing.T) {
	svc, _, members, _ := newStaffService(t)
	m := activeMember(morningBatch)
	m.ID = 4
	members.add(m)
	day := today.AddDays(-2)

	rec, err := svc.Mark(context.Background(), MarkInput{MemberID: 4, Date: &day, Status: StatusExcused, ActorID: 2})
	require.NoError(t, err)
	assert.Equal(t, day, rec.AttendedOn)
	assert.Nil(t, rec.CheckInTime)
}

func TestMarkRejectsDuplicate(t *testing.T) {
	svc, _, members, _ := newStaffService(t)
	m := activeMember(morningBatch)
	m.ID = 4
	members.add(m)

	_, err := svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusLate, ActorID: 2})
	require.NoError(t, err)
	_, err = svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusAbsent, ActorID: 3})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestMarkValidation(t *testing.T) {
	svc, _, _, _ := newStaffService(t)
	tomorrow := today.AddDays(1)

	_, err := svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: "sleeping", ActorID: 2})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusPresent})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusPresent, ActorID: 2, Date: &tomorrow})
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = svc.Mark(context.Background(), MarkInput{MemberID: 4, Status: StatusPresent, ActorID: 2})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSummary(t *testing.T) {
	svc, repo, _, _ := newStaffService(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &Record{MemberID: 1, AttendedOn: today, Status: StatusPresent}))
	require.NoError(t, repo.Insert(ctx, &Record{MemberID: 2, AttendedOn: today, Status: StatusLate}))
	require.NoError(t, repo.Insert(ctx, &Record{MemberID: 1, AttendedOn: today.AddDays(-1), Status: StatusAbsent}))
	require.NoError(t, repo.Insert(ctx, &Record{MemberID: 1, AttendedOn: today.AddDays(-9), Status: StatusAbsent}))

	sum, err := svc.Summary(ctx, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)

	sum, err = svc.Summary(ctx, today.AddDays(-7), today)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Counts[StatusAbsent])

	_, err = svc.Summary(ctx, today, today.AddDays(-1))
	assert.ErrorIs(t, err, shared.ErrBadRequest)
	_, err = svc.Summary(ctx, today.AddDays(-400), today)
	assert.ErrorIs(t, err, shared.ErrBadRequest)
}
