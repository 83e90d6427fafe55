package aggregate

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// MonthlyTotals sums reps per exercise name over parsed activities in the month.
// Exercises without entries in the month are absent from the result.
func MonthlyTotals(entries []domain.Entry, month Month, loc *time.Location) map[string]int {
	start, end := month.Bounds(loc)
	totals := make(map[string]int)
	for _, e := range entries {
		detail := e.Detail()
		if detail == nil || !within(e.Timestamp, start, end) {
			continue
		}
		totals[detail.Name] += detail.Reps
	}
	return totals
}

// PersonalRecords returns the all-time maximum reps per exercise name.
func PersonalRecords(entries []domain.Entry) map[string]int {
	records := make(map[string]int)
	for _, e := range entries {
		detail := e.Detail()
		if detail == nil {
			continue
		}
		if best, ok := records[detail.Name]; !ok || detail.Reps > best {
			records[detail.Name] = detail.Reps
		}
	}
	return records
}
