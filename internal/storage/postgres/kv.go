// Package postgres contains the PostgreSQL implementation of the storage.KV
// interface, for shared or daemon deployments.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is a minimal abstraction over a Postgres connection pool.
// It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// Close shuts down the pool and frees resources.
	Close()
}

// DB wraps pgxpool.Pool to satisfy constructors and allow testing.
type DB struct{ Pool PgxPool }

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// KV implements storage.KV on a kv table.
type KV struct{ db *DB }

// NewKV constructs the key-value store over an open pool.
func NewKV(db *DB) *KV { return &KV{db: db} }

// Get returns the value stored under key, with ok=false when absent.
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT value FROM kv WHERE key=$1`
	var value []byte
	if err := s.db.Pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key, overwriting any existing value.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := s.db.Pool.Exec(ctx, q, key, value)
	return err
}

// Delete removes the key; deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv WHERE key=$1`
	_, err := s.db.Pool.Exec(ctx, q, key)
	return err
}

// Close closes the underlying pool.
func (s *KV) Close() error {
	s.db.Pool.Close()
	return nil
}
