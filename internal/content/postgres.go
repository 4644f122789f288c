package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const ddlAssets = `
CREATE TABLE IF NOT EXISTS book_assets (
    book_id    TEXT         NOT NULL,
    kind       TEXT         NOT NULL,
    data       BYTEA        NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (book_id, kind)
);`

// PostgresStore is the asset store backed by a PostgreSQL book_assets table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the database at dsn and
// runs the migration to ensure the assets table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("content store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("content store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlAssets); err != nil {
		pool.Close()
		return nil, fmt.Errorf("content store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Asset implements [Store].
func (s *PostgresStore) Asset(ctx context.Context, bookID, kind string) ([]byte, error) {
	const q = `SELECT data FROM book_assets WHERE book_id = $1 AND kind = $2`

	var data []byte
	err := s.pool.QueryRow(ctx, q, bookID, kind).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("content store: get asset %s/%s: %w", bookID, kind, err)
	}
	return data, nil
}

// PutAsset implements [Store].
func (s *PostgresStore) PutAsset(ctx context.Context, bookID, kind string, data []byte) error {
	const q = `
		INSERT INTO book_assets (book_id, kind, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (book_id, kind)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, bookID, kind, data); err != nil {
		return fmt.Errorf("content store: put asset %s/%s: %w", bookID, kind, err)
	}
	return nil
}

// Pool exposes the underlying connection pool so other stores can share it.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
