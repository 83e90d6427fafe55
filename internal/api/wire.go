package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/fitlog/internal/aggregate"
	"example.com/fitlog/internal/domain"
)

// DetailView is the wire form of a parsed activity.
type DetailView struct {
	Name string `json:"name"`
	Reps int    `json:"reps"`
}

// EntryView is the JSON shape of an entry. Value holds a string for
// activities and a number for weights.
type EntryView struct {
	ID        string          `json:"_id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
	Details   *DetailView     `json:"details,omitempty"`
}

// ToEntryView converts a domain entry to its wire form.
func ToEntryView(entry domain.Entry) (EntryView, error) {
	view := EntryView{
		ID:        entry.ID,
		Timestamp: entry.Timestamp.UTC(),
		Type:      string(entry.Kind()),
	}

	var (
		raw []byte
		err error
	)
	switch v := entry.Value.(type) {
	case domain.Activity:
		raw, err = json.Marshal(v.Text)
		if v.Detail != nil {
			view.Details = &DetailView{Name: v.Detail.Name, Reps: v.Detail.Reps}
		}
	case domain.Weight:
		raw, err = json.Marshal(v.Amount)
	default:
		return EntryView{}, fmt.Errorf("entry %s: %w", entry.ID, domain.ErrInvalidKind)
	}
	if err != nil {
		return EntryView{}, fmt.Errorf("encode entry %s value: %w", entry.ID, err)
	}
	view.Value = raw
	return view, nil
}

// Entry converts the wire form back into a domain entry.
func (v EntryView) Entry() (domain.Entry, error) {
	entry := domain.Entry{ID: v.ID, Timestamp: v.Timestamp}

	kind, ok := domain.ParseKind(v.Type)
	if !ok {
		return domain.Entry{}, domain.ErrInvalidKind
	}
	switch kind {
	case domain.KindActivity:
		var text string
		if err := json.Unmarshal(v.Value, &text); err != nil {
			return domain.Entry{}, fmt.Errorf("%w: activity value must be a string", domain.ErrValidation)
		}
		activity := domain.Activity{Text: text}
		if v.Details != nil {
			activity.Detail = &domain.ParsedDetail{Name: v.Details.Name, Reps: v.Details.Reps}
		}
		entry.Value = activity
	case domain.KindWeight:
		amount, err := decodeWeight(v.Value)
		if err != nil {
			return domain.Entry{}, err
		}
		entry.Value = domain.Weight{Amount: amount}
	}
	return entry, nil
}

// CreateEntryRequest is the payload for POST /api/entries. Details are
// accepted for compatibility but recomputed from the activity text.
type CreateEntryRequest struct {
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value"`
	Details *DetailView     `json:"details,omitempty"`
}

// NewEntry validates the request and converts it into domain input.
func (r CreateEntryRequest) NewEntry() (domain.NewEntry, error) {
	kind, ok := domain.ParseKind(strings.TrimSpace(r.Type))
	if !ok {
		return domain.NewEntry{}, domain.ErrInvalidKind
	}

	switch kind {
	case domain.KindActivity:
		if isAbsent(r.Value) {
			return domain.NewEntry{}, domain.ErrEmptyActivity
		}
		var text string
		if err := json.Unmarshal(r.Value, &text); err != nil {
			return domain.NewEntry{}, fmt.Errorf("%w: activity value must be a string", domain.ErrValidation)
		}
		return domain.NewActivityEntry(text), nil
	default:
		amount, err := decodeWeight(r.Value)
		if err != nil {
			return domain.NewEntry{}, err
		}
		return domain.NewWeightEntry(amount), nil
	}
}

// decodeWeight accepts a JSON number or a string holding a decimal number.
func decodeWeight(raw json.RawMessage) (float64, error) {
	if isAbsent(raw) {
		return 0, domain.ErrInvalidNumber
	}
	var amount float64
	if err := json.Unmarshal(raw, &amount); err == nil {
		return amount, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, domain.ErrInvalidNumber
	}
	return domain.ParseWeight(text)
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// WeekPointView is one point of the weekly weight chart.
type WeekPointView struct {
	Label   string  `json:"label"`
	ISOYear int     `json:"iso_year"`
	ISOWeek int     `json:"iso_week"`
	Weight  float64 `json:"weight"`
	Average float64 `json:"average"`
}

// MonthOptionView is one entry of the month selector.
type MonthOptionView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// DashboardView is the response body of GET /api/dashboard.
type DashboardView struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	Month           string            `json:"month"`
	MonthLabel      string            `json:"month_label"`
	Timezone        string            `json:"timezone"`
	TodayActivities []EntryView       `json:"today_activities"`
	ActiveToday     bool              `json:"active_today"`
	CurrentWeight   *float64          `json:"current_weight,omitempty"`
	MonthlyTotals   map[string]int    `json:"monthly_totals"`
	PersonalRecords map[string]int    `json:"personal_records"`
	WeightSeries    []WeekPointView   `json:"weight_series"`
	Months          []MonthOptionView `json:"months"`
}

func toDashboardView(d aggregate.Dashboard, loc *time.Location) (DashboardView, error) {
	today, err := toEntryViews(d.TodayActivities)
	if err != nil {
		return DashboardView{}, err
	}

	view := DashboardView{
		GeneratedAt:     d.GeneratedAt.UTC(),
		Month:           d.Month.Key(),
		MonthLabel:      d.Month.Label(),
		Timezone:        loc.String(),
		TodayActivities: today,
		ActiveToday:     d.ActiveToday,
		CurrentWeight:   d.CurrentWeight,
		MonthlyTotals:   d.MonthlyTotals,
		PersonalRecords: d.PersonalRecords,
		WeightSeries:    make([]WeekPointView, 0, len(d.WeightSeries)),
		Months:          toMonthOptionViews(d.Months),
	}
	for _, p := range d.WeightSeries {
		view.WeightSeries = append(view.WeightSeries, WeekPointView{
			Label:   p.Label,
			ISOYear: p.ISOYear,
			ISOWeek: p.ISOWeek,
			Weight:  p.Weight,
			Average: p.Average(),
		})
	}
	return view, nil
}

func toMonthOptionViews(options []aggregate.MonthOption) []MonthOptionView {
	out := make([]MonthOptionView, 0, len(options))
	for _, o := range options {
		out = append(out, MonthOptionView{Key: o.Key, Label: o.Label})
	}
	return out
}

func toEntryViews(entries []domain.Entry) ([]EntryView, error) {
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		view, err := ToEntryView(e)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
