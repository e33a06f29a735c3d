// Package dates validates and manipulates the calendar-date ranges accepted
// by the API. All dates are whole days in UTC, formatted YYYY-MM-DD.
package dates

import (
	"time"

	"github.com/yieldera/climate-datahub/internal/errs"
)

const Layout = "2006-01-02"

type Range struct {
	Start time.Time
	End   time.Time
}

func Parse(start, end string) (Range, error) {
	s, err := time.ParseInLocation(Layout, start, time.UTC)
	if err != nil {
		return Range{}, errs.Validation("invalid start date %q: use YYYY-MM-DD", start)
	}
	e, err := time.ParseInLocation(Layout, end, time.UTC)
	if err != nil {
		return Range{}, errs.Validation("invalid end date %q: use YYYY-MM-DD", end)
	}
	return Range{Start: s, End: e}, nil
}

// Days is the inclusive span of the range in calendar days.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Months is the inclusive span in calendar months, for monthly datasets.
func (r Range) Months() int {
	return (r.End.Year()-r.Start.Year())*12 + int(r.End.Month()) - int(r.Start.Month()) + 1
}

func (r Range) StartString() string { return r.Start.Format(Layout) }
func (r Range) EndString() string   { return r.End.Format(Layout) }

// EachDay returns every calendar day of the range in ascending order.
func (r Range) EachDay() []time.Time {
	if r.End.Before(r.Start) {
		return nil
	}
	out := make([]time.Time, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// EachMonth returns the first day of every month of the range in ascending
// order.
func (r Range) EachMonth() []time.Time {
	if r.End.Before(r.Start) {
		return nil
	}
	out := make([]time.Time, 0, r.Months())
	d := time.Date(r.Start.Year(), r.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(r.End.Year(), r.End.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !d.After(last) {
		out = append(out, d)
		d = d.AddDate(0, 1, 0)
	}
	return out
}

// Validate enforces ordering and the dataset-specific maximum span.
func Validate(r Range, maxDays int) error {
	if r.End.Before(r.Start) {
		return errs.Validation("invalid date range: start must be before or equal to end")
	}
	if days := r.Days(); days > maxDays {
		return errs.Validation("date range too long: %d days (max: %d)", days, maxDays)
	}
	return nil
}

// CapEndToPresent clamps the end date to yesterday when it lies in the
// future, accounting for backend ingestion lag. now is injectable for tests.
func CapEndToPresent(r Range, now func() time.Time) Range {
	if now == nil {
		now = time.Now
	}
	t := now().UTC()
	yesterday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if r.End.After(yesterday) {
		r.End = yesterday
	}
	return r
}
