// This file implements the Strategy Pattern for budget period windows.
// Each period type (weekly, monthly, yearly) has its own strategy that
// computes the window containing a reference instant.

package core

import (
	"fmt"
	"time"
)

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Period is the length of a budget window.
type Period string

// PeriodWindow computes the [start, end] window containing now. Both ends are
// inclusive; end is the last representable instant before the next window.
type PeriodWindow interface {
	Window(now time.Time) (start, end time.Time)
}

// WeeklyWindow covers Monday 00:00 through the end of Sunday.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(now time.Time) (time.Time, time.Time) {
	day := StartOfDay(now)
	// time.Weekday starts on Sunday; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7).Add(-time.Nanosecond)
}

// MonthlyWindow covers the calendar month.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(now time.Time) (time.Time, time.Time) {
	start := StartOfMonth(now)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// YearlyWindow covers the calendar year.
type YearlyWindow struct{}

func (YearlyWindow) Window(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond)
}

var periodWindows = map[Period]PeriodWindow{
	Weekly:  WeeklyWindow{},
	Monthly: MonthlyWindow{},
	Yearly:  YearlyWindow{},
}

// WindowFor returns the window strategy for a period.
func WindowFor(p Period) (PeriodWindow, error) {
	w, ok := periodWindows[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return w, nil
}

func (p Period) Valid() bool {
	_, ok := periodWindows[p]
	return ok
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's calendar month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// CurrentMonth returns the calendar month window containing now.
func CurrentMonth(now time.Time) (time.Time, time.Time) {
	return MonthlyWindow{}.Window(now)
}
