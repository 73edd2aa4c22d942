package db

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgtype"
)

// DateArg converts an optional civil date into a query argument.
func DateArg(d *civil.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

// CivilArg converts a civil date into a query argument.
func CivilArg(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

// DatePtr converts a scanned date column into an optional civil date.
func DatePtr(v pgtype.Date) *civil.Date {
	if !v.Valid {
		return nil
	}
	d := civil.DateOf(v.Time)
	return &d
}

// Civil converts a scanned non-null date column.
func Civil(v pgtype.Date) civil.Date {
	return civil.DateOf(v.Time)
}
