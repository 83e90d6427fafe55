package aggregate

import (
	"cmp"
	"slices"
	"time"

	"example.com/fitlog/internal/domain"
)

const weekLabelLayout = "2006-01-02"

// WeekPoint is one point of the weekly weight chart.
type WeekPoint struct {
	ISOYear   int
	ISOWeek   int
	WeekStart time.Time // Monday 00:00 in the requested zone
	Label     string    // WeekStart as 2006-01-02
	Weight    float64   // last weight recorded in the week
	Sum       float64
	Count     int
}

// Average returns the mean of the weights recorded in the week.
func (p WeekPoint) Average() float64 {
	if p.Count == 0 {
		return 0
	}
	return p.Sum / float64(p.Count)
}

type weekKey struct {
	year int
	week int
}

// WeeklyWeightSeries buckets the weights of a month by ISO week and returns one
// point per week, ordered by ISO year and week. The value of a point is the
// chronologically last weight of its bucket.
func WeeklyWeightSeries(entries []domain.Entry, month Month, loc *time.Location) []WeekPoint {
	start, end := month.Bounds(loc)

	weights := make([]domain.Entry, 0)
	for _, e := range entries {
		if e.Kind() == domain.KindWeight && within(e.Timestamp, start, end) {
			weights = append(weights, e)
		}
	}
	domain.SortOldestFirst(weights)

	buckets := make(map[weekKey]*WeekPoint)
	for _, e := range weights {
		w, _ := e.Weight()
		local := e.Timestamp.In(loc)
		year, week := local.ISOWeek()
		key := weekKey{year: year, week: week}

		point, ok := buckets[key]
		if !ok {
			monday := mondayOf(local, loc)
			point = &WeekPoint{
				ISOYear:   year,
				ISOWeek:   week,
				WeekStart: monday,
				Label:     monday.Format(weekLabelLayout),
			}
			buckets[key] = point
		}
		point.Sum += w.Amount
		point.Count++
		point.Weight = w.Amount
	}

	series := make([]WeekPoint, 0, len(buckets))
	for _, p := range buckets {
		series = append(series, *p)
	}
	slices.SortFunc(series, func(a, b WeekPoint) int {
		if c := cmp.Compare(a.ISOYear, b.ISOYear); c != 0 {
			return c
		}
		return cmp.Compare(a.ISOWeek, b.ISOWeek)
	})
	return series
}

// mondayOf returns midnight of the Monday starting the ISO week of local.
func mondayOf(local time.Time, loc *time.Location) time.Time {
	offset := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}
