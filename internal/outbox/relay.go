// Package outbox relays entry events recorded in Postgres to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Kafka headers carried by every entry event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

const wireHeaderLen = 5

type topicWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Record is a pending row of the outbox table.
type Record struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Relay polls the outbox for unpublished entry events and publishes them,
// framed with their registry schema id. A batch that cannot be published is
// moved to outbox_dlq for the DLQManager to replay.
type Relay struct {
	pool      *pgxpool.Pool
	writer    topicWriter
	registry  schemaRegistrar
	interval  time.Duration
	batchSize int
	logger    log.FieldLogger

	schemaIDs sync.Map
	stopped   chan struct{}
}

// NewRelay constructs a Relay.
func NewRelay(pool *pgxpool.Pool, writer topicWriter, registry schemaRegistrar, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		pool:      pool,
		writer:    writer,
		registry:  registry,
		interval:  interval,
		batchSize: batchSize,
		logger:    log.WithField("component", "outbox-relay"),
		stopped:   make(chan struct{}),
	}
}

// Run relays batches every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.relayPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Errorf("relay entry events: %s", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Run has returned.
func (r *Relay) Wait() {
	<-r.stopped
}

func (r *Relay) relayPending(ctx context.Context) error {
	records, err := r.claimPending(ctx)
	if err != nil || len(records) == 0 {
		return err
	}

	start := time.Now()
	defer func() { relayBatchSeconds.Observe(time.Since(start).Seconds()) }()

	if err := r.publish(ctx, records); err != nil {
		r.logger.WithField("events", len(records)).Warnf("publish failed, dead-lettering batch: %s", err)
		if dlqErr := r.deadLetter(ctx, records, err.Error()); dlqErr != nil {
			return dlqErr
		}
		return r.markPublished(ctx, records)
	}

	for _, rec := range records {
		eventsPublished.WithLabelValues(rec.EventType).Inc()
	}
	r.logger.Debugf("published %d entry events", len(records))
	return r.markPublished(ctx, records)
}

// claimPending locks the oldest unpublished rows, stamps claimed_at and
// returns them. Concurrent relays skip each other's rows.
func (r *Relay) claimPending(ctx context.Context) (records []Record, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
         FROM outbox
         WHERE published_at IS NULL
         ORDER BY event_id
         LIMIT $1
         FOR UPDATE SKIP LOCKED`, r.batchSize)
	if err != nil {
		return nil, err
	}
	records, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.EventID, &rec.AggregateType, &rec.AggregateID, &rec.EventType,
			&rec.Topic, &rec.SchemaSubject, &rec.PartitionKey, &rec.Payload)
		return rec, err
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, tx.Rollback(ctx)
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(records)); err != nil {
		return nil, err
	}
	return records, tx.Commit(ctx)
}

// publish frames every record and writes one batch per topic, in the order
// topics first appear.
func (r *Relay) publish(ctx context.Context, records []Record) error {
	var order []string
	byTopic := make(map[string][]kafka.Message)

	for _, rec := range records {
		msg, err := r.frame(ctx, rec)
		if err != nil {
			return err
		}
		if _, seen := byTopic[rec.Topic]; !seen {
			order = append(order, rec.Topic)
		}
		byTopic[rec.Topic] = append(byTopic[rec.Topic], msg)
	}

	for _, topic := range order {
		if err := r.writer.WriteMessages(ctx, topic, byTopic[topic]...); err != nil {
			return fmt.Errorf("write %d events to %s: %w", len(byTopic[topic]), topic, err)
		}
	}
	return nil
}

func (r *Relay) frame(ctx context.Context, rec Record) (kafka.Message, error) {
	schema, ok := schemaCatalog[rec.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema metadata for event_type=%s", rec.EventType)
	}
	schemaID, err := r.schemaID(ctx, rec.SchemaSubject, schema.Schema)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.PartitionKey),
		Value: encodeWireFormat(schemaID, rec.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(rec.EventType)},
			{Key: HeaderSchemaSubject, Value: []byte(rec.SchemaSubject)},
		},
	}, nil
}

func (r *Relay) schemaID(ctx context.Context, subject, schema string) (int, error) {
	key := subject + "::" + schema
	if id, ok := r.schemaIDs.Load(key); ok {
		return id.(int), nil
	}
	id, err := r.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, fmt.Errorf("schema id for %s: %w", subject, err)
	}
	r.schemaIDs.Store(key, id)
	return id, nil
}

func (r *Relay) markPublished(ctx context.Context, records []Record) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(records))
	return err
}

// deadLetter copies records into outbox_dlq, due for an immediate first retry.
func (r *Relay) deadLetter(ctx context.Context, records []Record, reason string) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`,
			rec.EventID, rec.EventType, rec.Topic, rec.Payload, fmt.Sprintf("%s (topic=%s)", reason, rec.Topic),
			rec.AggregateType, rec.AggregateID, rec.SchemaSubject, rec.PartitionKey,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("dead-letter %d events: %w", len(records), err)
	}
	for _, rec := range records {
		eventsDeadLettered.WithLabelValues(rec.Topic).Inc()
	}
	return nil
}

func eventIDs(records []Record) []int64 {
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.EventID
	}
	return ids
}

// encodeWireFormat prefixes payload with a zero magic byte and the big-endian
// schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, wireHeaderLen, wireHeaderLen+len(payload))
	binary.BigEndian.PutUint32(frame[1:wireHeaderLen], uint32(schemaID))
	return append(frame, payload...)
}

// DecodeWireFormat splits a framed value into its schema id and payload.
func DecodeWireFormat(frame []byte) (int, []byte, error) {
	if len(frame) < wireHeaderLen || frame[0] != 0 {
		return 0, nil, errors.New("payload is not schema registry framed")
	}
	return int(binary.BigEndian.Uint32(frame[1:wireHeaderLen])), frame[wireHeaderLen:], nil
}
