package aggregate

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// TodayActivities returns the activities logged on the local day of now, in
// input order. Unparsed activities are included.
func TodayActivities(entries []domain.Entry, now time.Time, loc *time.Location) []domain.Entry {
	start, end := dayBounds(now, loc)
	out := make([]domain.Entry, 0)
	for _, e := range entries {
		if e.Kind() == domain.KindActivity && within(e.Timestamp, start, end) {
			out = append(out, e)
		}
	}
	return out
}

// ActiveToday reports whether any activity was logged on the local day of now.
func ActiveToday(entries []domain.Entry, now time.Time, loc *time.Location) bool {
	start, end := dayBounds(now, loc)
	for _, e := range entries {
		if e.Kind() == domain.KindActivity && within(e.Timestamp, start, end) {
			return true
		}
	}
	return false
}

// CurrentWeight returns the most recent weight. Among equal timestamps the one
// appearing last in the input wins.
func CurrentWeight(entries []domain.Entry) (float64, bool) {
	var (
		latest time.Time
		value  float64
		found  bool
	)
	for _, e := range entries {
		w, ok := e.Weight()
		if !ok {
			continue
		}
		if !found || !e.Timestamp.Before(latest) {
			latest = e.Timestamp
			value = w.Amount
			found = true
		}
	}
	return value, found
}
