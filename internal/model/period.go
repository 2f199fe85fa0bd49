package model

import (
	"errors"
	"time"
)

// ErrInvalidPeriod is returned for out-of-range month or year values.
var ErrInvalidPeriod = errors.New("invalid month or year")

// Period selects a calendar month in a given location.
type Period struct {
	Year     int
	Month    time.Month
	Location *time.Location
}

// NewPeriod validates month and year and returns a period in loc.
// A nil loc means UTC.
func NewPeriod(year, month int, loc *time.Location) (*Period, error) {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return nil, ErrInvalidPeriod
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Period{Year: year, Month: time.Month(month), Location: loc}, nil
}

// Bounds returns the first instant of the month and 23:59:59 of its last day.
func (p *Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, p.Location)
	lastDay := start.AddDate(0, 1, -1)
	end := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 0, p.Location)
	return start, end
}

// Contains reports whether ts falls inside the period, both ends inclusive.
// Comparison is at second resolution. A nil period contains everything.
func (p *Period) Contains(ts time.Time) bool {
	if p == nil {
		return true
	}
	start, end := p.Bounds()
	ts = ts.Truncate(time.Second)
	return !ts.Before(start) && !ts.After(end)
}
