// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"fmt"
	"time"

	"example.com/fitlog/internal/domain"
)

// EntryRow is the column-oriented form of an entry used by the SQL stores.
// Nil pointers map to NULL.
type EntryRow struct {
	ID         string
	Timestamp  time.Time
	Type       string
	Text       *string
	Weight     *float64
	DetailName *string
	DetailReps *int
}

// FlattenEntry converts an entry to its row form.
func FlattenEntry(e domain.Entry) (EntryRow, error) {
	row := EntryRow{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC(),
		Type:      string(e.Kind()),
	}
	switch v := e.Value.(type) {
	case domain.Activity:
		text := v.Text
		row.Text = &text
		if v.Detail != nil {
			name, reps := v.Detail.Name, v.Detail.Reps
			row.DetailName = &name
			row.DetailReps = &reps
		}
	case domain.Weight:
		amount := v.Amount
		row.Weight = &amount
	default:
		return EntryRow{}, fmt.Errorf("entry %s: unsupported value %T", e.ID, e.Value)
	}
	return row, nil
}

// Entry rebuilds the domain entry from a row.
func (r EntryRow) Entry() (domain.Entry, error) {
	entry := domain.Entry{ID: r.ID, Timestamp: r.Timestamp.UTC()}

	kind, ok := domain.ParseKind(r.Type)
	if !ok {
		return domain.Entry{}, fmt.Errorf("entry %s: unknown type %q", r.ID, r.Type)
	}

	switch kind {
	case domain.KindActivity:
		if r.Text == nil {
			return domain.Entry{}, fmt.Errorf("entry %s: activity without text", r.ID)
		}
		activity := domain.Activity{Text: *r.Text}
		if r.DetailName != nil && r.DetailReps != nil {
			activity.Detail = &domain.ParsedDetail{Name: *r.DetailName, Reps: *r.DetailReps}
		}
		entry.Value = activity
	case domain.KindWeight:
		if r.Weight == nil {
			return domain.Entry{}, fmt.Errorf("entry %s: weight without value", r.ID)
		}
		entry.Value = domain.Weight{Amount: *r.Weight}
	}
	return entry, nil
}
