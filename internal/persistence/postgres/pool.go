// Package postgres stores entries in Postgres and records their outbox
// events in the same transaction.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WaitForDatabase pings connStr until it answers or timeout elapses.
func WaitForDatabase(ctx context.Context, connStr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// Connect opens a pool once the database is reachable and applies migrations.
func Connect(ctx context.Context, connStr string, timeout time.Duration) (*pgxpool.Pool, error) {
	if err := WaitForDatabase(ctx, connStr, timeout); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
