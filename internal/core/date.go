// Package core holds the bot's domain types.
//
// Date is a calendar date without time-of-day. It is stored as midnight UTC so that
// comparisons and the YYYY-MM-DD rendering never shift across timezones.
package core

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Date struct {
	time.Time
}

var ErrInvalidDate = errors.New("invalid date")

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD, tolerating a trailing RFC3339 time part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// StartOfWeek returns the Monday on or before d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) EndOfMonth() Date {
	return Date{Time: d.StartOfMonth().Time.AddDate(0, 1, -1)}
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From Date
	To   Date
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// Today is the single-day range for d.
func Today(d Date) DateRange { return DateRange{From: d, To: d} }

// ThisWeek runs from Monday up to and including d.
func ThisWeek(d Date) DateRange { return DateRange{From: d.StartOfWeek(), To: d} }

// ThisMonth runs from the first of the month up to and including d.
func ThisMonth(d Date) DateRange { return DateRange{From: d.StartOfMonth(), To: d} }

// Trailing covers the last n days ending on d.
func Trailing(d Date, days int) DateRange {
	return DateRange{From: d.AddDays(-(days - 1)), To: d}
}
