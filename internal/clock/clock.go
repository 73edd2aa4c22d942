// Package clock supplies the facility's civil calendar. Every date decision in
// the membership engine reads "today" from here rather than from host time.
package clock

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports the current instant and civil day in the facility's timezone.
type Clock interface {
	Now() time.Time
	Today() civil.Date
}

// Facility is the production Clock pinned to one location.
type Facility struct {
	loc *time.Location
	now func() time.Time
}

// NewFacility loads the IANA timezone name and returns a Clock for it.
func NewFacility(tz string) (*Facility, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("clock: load location %q: %w", tz, err)
	}
	return &Facility{loc: loc, now: time.Now}, nil
}

// Location returns the facility timezone.
func (f *Facility) Location() *time.Location {
	return f.loc
}

// Now returns the current instant expressed in facility local time.
func (f *Facility) Now() time.Time {
	return f.now().In(f.loc)
}

// Today returns the facility's current civil date.
func (f *Facility) Today() civil.Date {
	return civil.DateOf(f.Now())
}

// Fixed is a Clock frozen at a single instant. Used by tests and backfills.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return f.At }

// Today returns the civil date of the fixed instant in its own location.
func (f Fixed) Today() civil.Date { return civil.DateOf(f.At) }

// On builds a Fixed clock at hour:minute on the given civil date.
func On(d civil.Date, hour, minute int, loc *time.Location) Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return Fixed{At: time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)}
}

// MinuteOfDay returns minutes elapsed since local midnight of t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
