package aggregate

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
)

var plusTwo = time.FixedZone("UTC+2", 2*60*60)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, plusTwo)
}

func activity(id string, ts time.Time, text string) domain.Entry {
	a := domain.Activity{Text: text}
	if detail, ok := domain.ParseActivity(text); ok {
		a.Detail = &detail
	}
	return domain.Entry{ID: id, Timestamp: ts.UTC(), Value: a}
}

func weight(id string, ts time.Time, amount float64) domain.Entry {
	return domain.Entry{ID: id, Timestamp: ts.UTC(), Value: domain.Weight{Amount: amount}}
}

func entryIDs(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestTodayActivities(t *testing.T) {
	now := at(2025, time.March, 4, 10, 0)
	entries := []domain.Entry{
		activity("late", at(2025, time.March, 4, 23, 59), "Squats - 20"),
		activity("yesterday", at(2025, time.March, 3, 23, 59), "Squats - 10"),
		activity("midnight", at(2025, time.March, 4, 0, 0), "Pushups - 40"),
		weight("weight", at(2025, time.March, 4, 8, 0), 71),
		activity("unparsed", at(2025, time.March, 4, 9, 0), "yoga"),
		activity("tomorrow", at(2025, time.March, 5, 0, 0), "Pushups - 5"),
	}

	got := TodayActivities(entries, now, plusTwo)
	require.Equal(t, []string{"late", "midnight", "unparsed"}, entryIDs(got), "input order is preserved")
	require.True(t, ActiveToday(entries, now, plusTwo))
	require.False(t, ActiveToday(entries, at(2025, time.March, 6, 12, 0), plusTwo))
}

func TestTodayActivitiesUsesGivenZone(t *testing.T) {
	// 23:30 UTC on March 3rd is already March 4th at UTC+2.
	entries := []domain.Entry{activity("a", time.Date(2025, time.March, 3, 23, 30, 0, 0, time.UTC), "Pushups - 1")}
	now := at(2025, time.March, 4, 12, 0)

	require.Len(t, TodayActivities(entries, now, plusTwo), 1)
	require.Empty(t, TodayActivities(entries, now, time.UTC))
}

func TestCurrentWeight(t *testing.T) {
	_, ok := CurrentWeight(nil)
	require.False(t, ok)

	t1 := at(2025, time.March, 1, 8, 0)
	t2 := t1.Add(24 * time.Hour)
	w, ok := CurrentWeight([]domain.Entry{weight("b", t2, 72), weight("a", t1, 70)})
	require.True(t, ok)
	require.Equal(t, 72.0, w)

	w, ok = CurrentWeight([]domain.Entry{weight("a", t1, 70), weight("b", t1, 71)})
	require.True(t, ok)
	require.Equal(t, 71.0, w, "ties resolve to the last one encountered")
}

func TestMonthlyTotalsAndRecords(t *testing.T) {
	march := Month{Year: 2025, Month: time.March}
	entries := []domain.Entry{
		activity("1", at(2025, time.March, 2, 9, 0), "Pushups - 10"),
		activity("2", at(2025, time.March, 20, 9, 0), "Pushups - 20"),
		activity("3", at(2025, time.March, 21, 9, 0), "Squats - 15"),
		activity("4", at(2025, time.March, 22, 9, 0), "stretching"),
		activity("5", at(2025, time.February, 27, 9, 0), "Pushups - 50"),
		activity("6", at(2025, time.March, 23, 9, 0), "Push ups - 7"),
	}

	totals := MonthlyTotals(entries, march, plusTwo)
	require.Equal(t, map[string]int{"pushups": 30, "squats": 15, "push ups": 7}, totals)

	records := PersonalRecords(entries)
	require.Equal(t, map[string]int{"pushups": 50, "squats": 15, "push ups": 7}, records)

	require.Empty(t, MonthlyTotals(entries, Month{Year: 2024, Month: time.March}, plusTwo))
	require.Empty(t, PersonalRecords(nil))
}

func TestMonthlyTotalsSumMatchesParsedReps(t *testing.T) {
	march := Month{Year: 2025, Month: time.March}
	entries := make([]domain.Entry, 0)
	expected := 0
	for day := 1; day <= 31; day++ {
		reps := day * 3
		entries = append(entries, activity("p", at(2025, time.March, day, 7, 0), "Pushups - "+strconv.Itoa(reps)))
		expected += reps
		entries = append(entries, activity("u", at(2025, time.March, day, 8, 0), "Pushups"))
	}

	sum := 0
	for _, v := range MonthlyTotals(entries, march, plusTwo) {
		sum += v
	}
	require.Equal(t, expected, sum)
}

func TestPersonalRecordsNeverDecrease(t *testing.T) {
	entries := make([]domain.Entry, 0)
	previous := 0
	for i, reps := range []int{10, 30, 5, 30, 12, 45, 0} {
		entries = append(entries, activity("x", at(2025, time.January, i+1, 9, 0), "Pushups - "+strconv.Itoa(reps)))
		record := PersonalRecords(entries)["pushups"]
		require.GreaterOrEqual(t, record, previous)
		previous = record
	}
	require.Equal(t, 45, previous)
}

func TestWeeklyWeightSeries(t *testing.T) {
	march := Month{Year: 2025, Month: time.March}
	entries := []domain.Entry{
		weight("w5", at(2025, time.March, 12, 7, 0), 72),
		weight("w2", at(2025, time.March, 2, 7, 0), 70.5),
		weight("w0", at(2025, time.February, 28, 7, 0), 69),
		weight("w4", at(2025, time.March, 6, 7, 0), 71.5),
		weight("w1", at(2025, time.March, 1, 7, 0), 70),
		weight("w3", at(2025, time.March, 4, 7, 0), 71),
		activity("a", at(2025, time.March, 4, 7, 0), "Pushups - 10"),
	}

	series := WeeklyWeightSeries(entries, march, plusTwo)
	require.Len(t, series, 3)

	assert.Equal(t, "2025-02-24", series[0].Label)
	assert.Equal(t, 9, series[0].ISOWeek)
	assert.Equal(t, 70.5, series[0].Weight, "last value of the week, not the average")
	assert.Equal(t, 2, series[0].Count)
	assert.InDelta(t, 70.25, series[0].Average(), 1e-9)

	assert.Equal(t, "2025-03-03", series[1].Label)
	assert.Equal(t, 71.5, series[1].Weight)

	assert.Equal(t, "2025-03-10", series[2].Label)
	assert.Equal(t, 72.0, series[2].Weight)
	assert.Equal(t, 1, series[2].Count)

	for _, p := range series {
		assert.Equal(t, time.Monday, p.WeekStart.Weekday())
	}

	require.Empty(t, WeeklyWeightSeries(entries, Month{Year: 2025, Month: time.April}, plusTwo))
}

func TestWeeklyWeightSeriesAcrossISOYear(t *testing.T) {
	december := Month{Year: 2024, Month: time.December}
	entries := []domain.Entry{
		weight("b", at(2024, time.December, 31, 7, 0), 80),
		weight("a", at(2024, time.December, 23, 7, 0), 81),
	}

	series := WeeklyWeightSeries(entries, december, plusTwo)
	require.Len(t, series, 2)
	require.Equal(t, 2024, series[0].ISOYear)
	require.Equal(t, 52, series[0].ISOWeek)
	require.Equal(t, 2025, series[1].ISOYear)
	require.Equal(t, 1, series[1].ISOWeek)
	require.Equal(t, "2024-12-30", series[1].Label)
}

func TestMonthRoster(t *testing.T) {
	now := at(2025, time.April, 2, 12, 0)
	entries := []domain.Entry{
		weight("a", at(2025, time.January, 5, 7, 0), 70),
		weight("b", at(2025, time.March, 5, 7, 0), 70),
		activity("c", at(2024, time.December, 5, 7, 0), "Squats - 1"),
		weight("d", at(2025, time.March, 9, 7, 0), 70),
	}

	roster := MonthRoster(entries, now, plusTwo)
	keys := make([]string, 0, len(roster))
	for _, o := range roster {
		keys = append(keys, o.Key)
	}
	require.Equal(t, []string{CurrentMonthKey, "2025-03", "2025-01", "2024-12"}, keys)
	require.Equal(t, Month{Year: 2025, Month: time.April}, roster[0].Month)
	require.Equal(t, "March 2025", roster[1].Label)

	require.Len(t, MonthRoster(nil, now, plusTwo), 1)
}

func TestParseMonth(t *testing.T) {
	now := at(2025, time.April, 2, 12, 0)

	m, err := ParseMonth("current", now, plusTwo)
	require.NoError(t, err)
	require.Equal(t, Month{Year: 2025, Month: time.April}, m)

	m, err = ParseMonth("2024-11", now, plusTwo)
	require.NoError(t, err)
	require.Equal(t, "2024-11", m.Key())

	_, err = ParseMonth("11/2024", now, plusTwo)
	require.Error(t, err)
}

func TestBuildDashboard(t *testing.T) {
	now := at(2025, time.March, 20, 18, 0)
	entries := []domain.Entry{
		activity("1", at(2025, time.March, 20, 9, 0), "Pushups - 10"),
		activity("2", at(2025, time.March, 20, 10, 0), "Pushups - 20"),
		weight("3", at(2025, time.March, 18, 7, 0), 70),
		weight("4", at(2025, time.March, 19, 7, 0), 72),
	}

	d := BuildDashboard(entries, now, plusTwo, MonthOf(now, plusTwo))
	require.NotNil(t, d.CurrentWeight)
	require.Equal(t, 72.0, *d.CurrentWeight)
	require.Equal(t, 30, d.MonthlyTotals["pushups"])
	require.Equal(t, 20, d.PersonalRecords["pushups"])
	require.True(t, d.ActiveToday)
	require.Len(t, d.TodayActivities, 2)
	require.Len(t, d.WeightSeries, 1)
	require.Equal(t, "1", entries[0].ID, "input must not be reordered")

	empty := BuildDashboard(nil, now, plusTwo, MonthOf(now, plusTwo))
	require.Nil(t, empty.CurrentWeight)
	require.Empty(t, empty.TodayActivities)
	require.Empty(t, empty.MonthlyTotals)
	require.Empty(t, empty.WeightSeries)
}
