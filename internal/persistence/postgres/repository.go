package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/persistence"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := migrationFiles.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Repository provides Postgres-backed persistence for entries and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists the entry and records its outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, entry domain.Entry) error {
	row, err := persistence.FlattenEntry(entry)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertEntry = `INSERT INTO entries (entry_id, recorded_at, entry_type, text_value, weight_value, detail_name, detail_reps)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, insertEntry,
		row.ID,
		row.Timestamp,
		row.Type,
		row.Text,
		row.Weight,
		row.DetailName,
		row.DetailReps,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, entry, events.EntryCreatedType, events.NewEntryCreated(entry)); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordEntryPersisted(entry.Timestamp)
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, entry domain.Entry, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(entry)
	dedupeKey := fmt.Sprintf("%s:%s", entry.ID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"entry",
		entry.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// List returns every entry ordered newest first.
func (r *Repository) List(ctx context.Context) ([]domain.Entry, error) {
	const query = `SELECT entry_id, recorded_at, entry_type, text_value, weight_value, detail_name, detail_reps
        FROM entries ORDER BY recorded_at DESC, entry_id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Entry, 0)
	for rows.Next() {
		var row persistence.EntryRow
		if err := rows.Scan(&row.ID, &row.Timestamp, &row.Type, &row.Text, &row.Weight, &row.DetailName, &row.DetailReps); err != nil {
			return nil, err
		}
		entry, err := row.Entry()
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Entry) string
}

var eventCatalog = map[string]EventMetadata{
	events.EntryCreatedType: {
		Topic:         events.EntryTopic,
		SchemaSubject: events.EntryTopic + "-value",
		PartitionKeyFn: func(e domain.Entry) string {
			if detail := e.Detail(); detail != nil {
				return detail.Name
			}
			return string(e.Kind())
		},
	},
}
