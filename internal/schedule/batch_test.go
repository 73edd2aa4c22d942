package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func testSchedule(t *testing.T) *Schedule {
	return &Schedule{Batches: []Batch{
		{ID: 1, Name: "Morning", Start: tod(t, "06:00"), End: tod(t, "08:00"), Active: true},
		{ID: 2, Name: "Evening", Start: tod(t, "18:00"), End: tod(t, "20:00"), Active: true},
		{ID: 3, Name: "Retired", Start: tod(t, "04:00"), End: tod(t, "05:00"), Active: false},
	}}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	v := tod(t, "18:45")
	assert.Equal(t, 18*60+45, int(v))
	assert.Equal(t, "18:45", v.String())
	assert.Equal(t, "6:45 PM", v.Display())
	assert.Equal(t, TimeOfDay(7*60+5), At(time.Date(2026, 3, 10, 7, 5, 59, 0, time.UTC)))

	raw, err := json.Marshal(struct {
		At TimeOfDay `json:"at"`
	}{v})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"18:45"}`, string(raw))

	_, err = ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestBatchContainsIsInclusive(t *testing.T) {
	b := Batch{Start: tod(t, "06:00"), End: tod(t, "08:00")}
	assert.True(t, b.Contains(tod(t, "06:00")))
	assert.True(t, b.Contains(tod(t, "08:00")))
	assert.False(t, b.Contains(tod(t, "08:01")))
	assert.False(t, b.Contains(tod(t, "05:59")))
}

func TestBatchContainsWrapsMidnight(t *testing.T) {
	b := Batch{Start: tod(t, "22:00"), End: tod(t, "01:00")}
	require.True(t, b.Wraps())
	assert.True(t, b.Contains(tod(t, "23:30")))
	assert.True(t, b.Contains(tod(t, "00:15")))
	assert.True(t, b.Contains(tod(t, "01:00")))
	assert.False(t, b.Contains(tod(t, "01:01")))
	assert.False(t, b.Contains(tod(t, "21:59")))
}

func TestHours(t *testing.T) {
	h, ok := testSchedule(t).Hours()
	require.True(t, ok)
	assert.Equal(t, tod(t, "06:00"), h.Open)
	assert.Equal(t, tod(t, "20:00"), h.Close)
	assert.True(t, h.Contains(tod(t, "12:00")))
	assert.False(t, h.Contains(tod(t, "05:00")), "inactive batches do not extend hours")
	assert.False(t, h.Contains(tod(t, "20:30")))

	_, ok = (&Schedule{}).Hours()
	assert.False(t, ok)
}

func TestHoursWithLateNightBatch(t *testing.T) {
	s := testSchedule(t)
	s.Batches = append(s.Batches, Batch{ID: 4, Name: "Night", Start: tod(t, "22:00"), End: tod(t, "01:30"), Active: true})

	h, ok := s.Hours()
	require.True(t, ok)
	assert.Equal(t, tod(t, "06:00"), h.Open)
	assert.Equal(t, tod(t, "01:30"), h.Close)
	assert.True(t, h.Contains(tod(t, "23:00")))
	assert.True(t, h.Contains(tod(t, "01:00")))
	assert.False(t, h.Contains(tod(t, "03:00")))
}

func TestRunningAndNextStart(t *testing.T) {
	s := testSchedule(t)

	running := s.Running(tod(t, "07:00"))
	require.Len(t, running, 1)
	assert.Equal(t, "Morning", running[0].Name)
	assert.Empty(t, s.Running(tod(t, "12:00")))

	next, ok := s.NextStart(tod(t, "12:00"))
	require.True(t, ok)
	assert.Equal(t, "Evening", next.Name)

	next, ok = s.NextStart(tod(t, "21:00"))
	require.True(t, ok)
	assert.Equal(t, "Morning", next.Name, "rolls over to tomorrow's first batch")

	_, ok = (&Schedule{}).NextStart(0)
	assert.False(t, ok)
}

func TestBatchLabel(t *testing.T) {
	b := Batch{Name: "Morning", Start: tod(t, "06:00"), End: tod(t, "07:30")}
	assert.Equal(t, "Morning (6:00 AM - 7:30 AM)", b.Label())
}
