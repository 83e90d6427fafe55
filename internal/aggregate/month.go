// Package aggregate computes the views shown on the dashboard from a set of
// entries. Every function is pure: the reference instant and the time zone are
// explicit arguments and the input slice is never modified.
package aggregate

import (
	"fmt"
	"strings"
	"time"
)

// CurrentMonthKey selects the month containing the reference instant.
const CurrentMonthKey = "current"

const monthKeyLayout = "2006-01"

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month of t in loc.
func MonthOf(t time.Time, loc *time.Location) Month {
	local := t.In(loc)
	return Month{Year: local.Year(), Month: local.Month()}
}

// ParseMonth parses "2025-03" or "current". The empty string means current.
func ParseMonth(raw string, now time.Time, loc *time.Location) (Month, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == CurrentMonthKey {
		return MonthOf(now, loc), nil
	}
	parsed, err := time.Parse(monthKeyLayout, raw)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q, expected YYYY-MM", raw)
	}
	return Month{Year: parsed.Year(), Month: parsed.Month()}, nil
}

// Key formats the month as "2025-03".
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label formats the month as "March 2025".
func (m Month) Label() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// Bounds returns [first instant of the month, first instant of the next month) in loc.
func (m Month) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the month in loc.
func (m Month) Contains(t time.Time, loc *time.Location) bool {
	start, end := m.Bounds(loc)
	return within(t, start, end)
}

func (m Month) after(o Month) bool {
	if m.Year != o.Year {
		return m.Year > o.Year
	}
	return m.Month > o.Month
}

// dayBounds returns [start of the local day of now, start of the next local day).
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
