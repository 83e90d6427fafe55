package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/fitlog/internal/events"
)

func decodeEntryCreated(msg Message) (events.EntryCreated, error) {
	var evt events.EntryCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return events.EntryCreated{}, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	if evt.EntryID == "" {
		return events.EntryCreated{}, fmt.Errorf("%w: entry_id is empty", ErrMalformedPayload)
	}
	return evt, nil
}

// RecordsHandler tracks the highest reps per exercise seen in entry events.
type RecordsHandler struct {
	mu      sync.Mutex
	records map[string]int
}

// NewRecordsHandler constructs an empty RecordsHandler.
func NewRecordsHandler() *RecordsHandler {
	return &RecordsHandler{records: make(map[string]int)}
}

// Handle updates the record for the event's exercise. Events other than
// entry.created and activities without a parsed exercise are ignored.
func (h *RecordsHandler) Handle(_ context.Context, msg Message) error {
	if msg.EventType != events.EntryCreatedType {
		return nil
	}
	evt, err := decodeEntryCreated(msg)
	if err != nil {
		return err
	}
	if !evt.HasDetail() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	previous, seen := h.records[evt.Name]
	if seen && *evt.Reps <= previous {
		return nil
	}
	h.records[evt.Name] = *evt.Reps
	personalRecordGauge.WithLabelValues(evt.Name).Set(float64(*evt.Reps))
	if seen {
		log.WithFields(log.Fields{
			"exercise": evt.Name,
			"reps":     *evt.Reps,
			"previous": previous,
		}).Info("new personal record")
	}
	return nil
}

// Records returns a copy of the current records.
func (h *RecordsHandler) Records() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.records))
	for name, reps := range h.records {
		out[name] = reps
	}
	return out
}

// EventLogHandler appends consumed entry events to the entry_event_log table.
type EventLogHandler struct {
	pool *pgxpool.Pool
}

// NewEventLogHandler constructs a handler backed by the provided pool.
func NewEventLogHandler(pool *pgxpool.Pool) *EventLogHandler {
	return &EventLogHandler{pool: pool}
}

// Handle stores the event. Redelivered records are ignored.
func (h *EventLogHandler) Handle(ctx context.Context, msg Message) error {
	evt, err := decodeEntryCreated(msg)
	if err != nil {
		return err
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO entry_event_log (entry_id, event_type, schema_id, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		evt.EntryID,
		msg.EventType,
		msg.SchemaID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// Chain fans a message out to every handler and joins their errors.
type Chain []Handler

// Handle runs all handlers even when an earlier one fails.
func (c Chain) Handle(ctx context.Context, msg Message) error {
	var err error
	for _, h := range c {
		err = multierr.Append(err, h.Handle(ctx, msg))
	}
	return err
}
