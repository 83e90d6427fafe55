// Package sqlite stores entries in a local SQLite database. It is the default
// store for a single-user install.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/persistence"
)

const currentVersion = 1

// Repository is a SQLite-backed domain.EntryRepository.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	r := &Repository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// NewMemory creates an in-memory repository for tests.
func NewMemory() (*Repository, error) {
	return New(":memory:")
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	var version int
	if err := r.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		const ddl = `
		CREATE TABLE IF NOT EXISTS entries (
			entry_id     TEXT PRIMARY KEY,
			recorded_at  INTEGER NOT NULL,
			entry_type   TEXT NOT NULL CHECK (entry_type IN ('activity', 'weight')),
			text_value   TEXT,
			weight_value REAL,
			detail_name  TEXT,
			detail_reps  INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_entries_recorded_at ON entries(recorded_at);
		`
		if _, err := r.db.Exec(ddl); err != nil {
			return err
		}
	}

	_, err := r.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Create inserts an entry.
func (r *Repository) Create(ctx context.Context, entry domain.Entry) error {
	row, err := persistence.FlattenEntry(entry)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entries (entry_id, recorded_at, entry_type, text_value, weight_value, detail_name, detail_reps)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Timestamp.UnixNano(), row.Type, row.Text, row.Weight, row.DetailName, row.DetailReps,
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}
	observability.RecordEntryPersisted(entry.Timestamp)
	return nil
}

// List returns all entries, newest first.
func (r *Repository) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entry_id, recorded_at, entry_type, text_value, weight_value, detail_name, detail_reps
		 FROM entries ORDER BY recorded_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.Entry, 0)
	for rows.Next() {
		var (
			row        persistence.EntryRow
			recordedAt int64
			text       sql.NullString
			weight     sql.NullFloat64
			detailName sql.NullString
			detailReps sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &recordedAt, &row.Type, &text, &weight, &detailName, &detailReps); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		row.Timestamp = time.Unix(0, recordedAt).UTC()
		if text.Valid {
			row.Text = &text.String
		}
		if weight.Valid {
			row.Weight = &weight.Float64
		}
		if detailName.Valid {
			row.DetailName = &detailName.String
		}
		if detailReps.Valid {
			reps := int(detailReps.Int64)
			row.DetailReps = &reps
		}

		entry, err := row.Entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
