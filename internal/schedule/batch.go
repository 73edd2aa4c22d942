// Package schedule models training batches and the facility hours they imply.
// Batch windows are inclusive at both ends and may wrap past midnight.
package schedule

import (
	"sort"
	"time"
)

// Batch is a recurring daily training slot.
type Batch struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Start     TimeOfDay `json:"start_time"`
	End       TimeOfDay `json:"end_time"`
	Capacity  int       `json:"capacity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Wraps reports whether the batch runs past midnight.
func (b Batch) Wraps() bool {
	return b.End < b.Start
}

// Contains reports whether t falls inside the batch window.
func (b Batch) Contains(t TimeOfDay) bool {
	if b.Wraps() {
		return t >= b.Start || t <= b.End
	}
	return t >= b.Start && t <= b.End
}

// Label renders "Morning (6:00 AM - 7:30 AM)".
func (b Batch) Label() string {
	return b.Name + " (" + b.Start.Display() + " - " + b.End.Display() + ")"
}

// Schedule is the set of batches the facility runs.
type Schedule struct {
	Batches []Batch `json:"batches"`
}

// Get returns the batch with id.
func (s *Schedule) Get(id int64) (Batch, bool) {
	for _, b := range s.Batches {
		if b.ID == id {
			return b, true
		}
	}
	return Batch{}, false
}

// Active returns the active batches ordered by start time.
func (s *Schedule) Active() []Batch {
	var out []Batch
	for _, b := range s.Batches {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].ID < out[j].ID
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// Hours is the span from the earliest active start to the latest active end.
type Hours struct {
	Open  TimeOfDay `json:"open"`
	Close TimeOfDay `json:"close"`
	// closeOffset is Close in minutes after the opening day's midnight,
	// beyond MinutesPerDay when the last batch runs past midnight.
	closeOffset int
}

// Contains reports whether t falls within facility hours.
func (h Hours) Contains(t TimeOfDay) bool {
	if h.closeOffset < MinutesPerDay {
		return t >= h.Open && int(t) <= h.closeOffset
	}
	return t >= h.Open || int(t) <= h.closeOffset-MinutesPerDay
}

// Hours derives facility hours. ok is false without active batches.
func (s *Schedule) Hours() (h Hours, ok bool) {
	active := s.Active()
	if len(active) == 0 {
		return Hours{}, false
	}
	h.Open = active[0].Start
	for _, b := range active {
		end := int(b.End)
		if b.Wraps() {
			end += MinutesPerDay
		}
		if end > h.closeOffset {
			h.closeOffset = end
		}
	}
	h.Close = TimeOfDay(h.closeOffset % MinutesPerDay)
	return h, true
}

// Running returns the active batches whose window contains t.
func (s *Schedule) Running(t TimeOfDay) []Batch {
	var out []Batch
	for _, b := range s.Active() {
		if b.Contains(t) {
			out = append(out, b)
		}
	}
	return out
}

// NextStart returns the first active batch start after t, rolling over to the
// earliest start of the next day.
func (s *Schedule) NextStart(t TimeOfDay) (Batch, bool) {
	active := s.Active()
	if len(active) == 0 {
		return Batch{}, false
	}
	for _, b := range active {
		if b.Start > t {
			return b, true
		}
	}
	return active[0], true
}
