package domain

import "time"

// Kind discriminates the two entry variants.
type Kind string

const (
	KindActivity Kind = "activity"
	KindWeight   Kind = "weight"
)

// ParseKind maps a wire string to a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindActivity:
		return KindActivity, true
	case KindWeight:
		return KindWeight, true
	}
	return "", false
}

// ParsedDetail is the structured form of an activity such as "Pushups - 40".
type ParsedDetail struct {
	Name string
	Reps int
}

// Value is the payload of an Entry. It is implemented by Activity and Weight only.
type Value interface {
	Kind() Kind
	isValue()
}

// Activity is free text as typed by the user plus its parsed form, if any.
type Activity struct {
	Text   string
	Detail *ParsedDetail
}

func (Activity) Kind() Kind { return KindActivity }
func (Activity) isValue()   {}

// Weight is a body weight measurement. No unit conversion is applied.
type Weight struct {
	Amount float64
}

func (Weight) Kind() Kind { return KindWeight }
func (Weight) isValue()   {}

// Entry is one immutable logged fact.
type Entry struct {
	ID        string
	Timestamp time.Time
	Value     Value
}

// Kind returns the variant of the entry value.
func (e Entry) Kind() Kind {
	if e.Value == nil {
		return ""
	}
	return e.Value.Kind()
}

// Activity returns the activity payload when the entry is an activity.
func (e Entry) Activity() (Activity, bool) {
	a, ok := e.Value.(Activity)
	return a, ok
}

// Weight returns the weight payload when the entry is a weight measurement.
func (e Entry) Weight() (Weight, bool) {
	w, ok := e.Value.(Weight)
	return w, ok
}

// Detail returns the parsed detail of an activity, or nil.
func (e Entry) Detail() *ParsedDetail {
	if a, ok := e.Activity(); ok {
		return a.Detail
	}
	return nil
}

// NewEntry is the caller-supplied part of an entry; ID and Timestamp are assigned on create.
type NewEntry struct {
	Value Value
}

// NewActivityEntry builds a NewEntry for activity text. The detail is derived on create.
func NewActivityEntry(text string) NewEntry {
	return NewEntry{Value: Activity{Text: text}}
}

// NewWeightEntry builds a NewEntry for a weight measurement.
func NewWeightEntry(amount float64) NewEntry {
	return NewEntry{Value: Weight{Amount: amount}}
}
