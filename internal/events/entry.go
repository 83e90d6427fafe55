// Package events defines the payloads published for entry changes.
package events

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// Event types recorded in the outbox.
const (
	EntryCreatedType = "entry.created"
	EntryTopic       = "entry_events"
)

// EntryCreated is emitted once an entry has been stored.
type EntryCreated struct {
	EntryID   string    `json:"entry_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text,omitempty"`
	Weight    *float64  `json:"weight,omitempty"`
	Name      string    `json:"name,omitempty"`
	Reps      *int      `json:"reps,omitempty"`
}

// NewEntryCreated builds the event for a stored entry.
func NewEntryCreated(e domain.Entry) EntryCreated {
	evt := EntryCreated{
		EntryID:   e.ID,
		Type:      string(e.Kind()),
		Timestamp: e.Timestamp.UTC(),
	}
	switch v := e.Value.(type) {
	case domain.Activity:
		evt.Text = v.Text
		if v.Detail != nil {
			reps := v.Detail.Reps
			evt.Name = v.Detail.Name
			evt.Reps = &reps
		}
	case domain.Weight:
		amount := v.Amount
		evt.Weight = &amount
	}
	return evt
}

// HasDetail reports whether the event carries a parsed exercise.
func (e EntryCreated) HasDetail() bool {
	return e.Name != "" && e.Reps != nil
}
