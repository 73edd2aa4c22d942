package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

// AddMonths moves d forward by n calendar months. When the source day does not
// exist in the target month the result is clamped to that month's last day,
// so 31 Jan + 1 month is 28 Feb (29 Feb in leap years).
func AddMonths(d civil.Date, n int) civil.Date {
	// Day 1 never overflows, so time.Date normalisation is safe here.
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := d.Day
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: day}
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns to − from in whole civil days.
func DaysBetween(from, to civil.Date) int {
	return to.DaysSince(from)
}

// Ptr returns a pointer to a copy of d.
func Ptr(d civil.Date) *civil.Date {
	return &d
}
