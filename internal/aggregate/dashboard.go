package aggregate

import (
	"slices"
	"time"

	"example.com/fitlog/internal/domain"
)

// MonthOption is one choice of the month selector.
type MonthOption struct {
	Key   string
	Label string
	Month Month
}

// MonthRoster lists the months present in entries, newest first, preceded by
// a synthetic option for the month of now.
func MonthRoster(entries []domain.Entry, now time.Time, loc *time.Location) []MonthOption {
	seen := make(map[Month]struct{})
	months := make([]Month, 0)
	for _, e := range entries {
		m := MonthOf(e.Timestamp, loc)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	slices.SortFunc(months, func(a, b Month) int {
		switch {
		case a.after(b):
			return -1
		case b.after(a):
			return 1
		}
		return 0
	})

	roster := make([]MonthOption, 0, len(months)+1)
	roster = append(roster, MonthOption{
		Key:   CurrentMonthKey,
		Label: "This Month",
		Month: MonthOf(now, loc),
	})
	for _, m := range months {
		roster = append(roster, MonthOption{Key: m.Key(), Label: m.Label(), Month: m})
	}
	return roster
}

// Dashboard bundles every aggregate the presentation layer renders.
type Dashboard struct {
	GeneratedAt     time.Time
	Month           Month
	TodayActivities []domain.Entry
	ActiveToday     bool
	CurrentWeight   *float64
	MonthlyTotals   map[string]int
	PersonalRecords map[string]int
	WeightSeries    []WeekPoint
	Months          []MonthOption
}

// BuildDashboard computes the full dashboard for month as seen at now in loc.
func BuildDashboard(entries []domain.Entry, now time.Time, loc *time.Location, month Month) Dashboard {
	ordered := slices.Clone(entries)
	domain.SortOldestFirst(ordered)

	d := Dashboard{
		GeneratedAt:     now,
		Month:           month,
		TodayActivities: TodayActivities(ordered, now, loc),
		ActiveToday:     ActiveToday(ordered, now, loc),
		MonthlyTotals:   MonthlyTotals(ordered, month, loc),
		PersonalRecords: PersonalRecords(ordered),
		WeightSeries:    WeeklyWeightSeries(ordered, month, loc),
		Months:          MonthRoster(ordered, now, loc),
	}
	if w, ok := CurrentWeight(ordered); ok {
		d.CurrentWeight = &w
	}
	return d
}
