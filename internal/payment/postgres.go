package payment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ PurchaseStore = (*PostgresPurchases)(nil)

const ddlPurchases = `
CREATE TABLE IF NOT EXISTS purchases (
    id                BIGSERIAL    PRIMARY KEY,
    user_id           TEXT         NOT NULL,
    book_id           TEXT         NOT NULL,
    stripe_session_id TEXT         NOT NULL UNIQUE,
    amount_total      BIGINT       NOT NULL,
    status            TEXT         NOT NULL,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases (user_id);`

// PostgresPurchases is the purchase store backed by a PostgreSQL purchases
// table. All methods are safe for concurrent use.
type PostgresPurchases struct {
	pool *pgxpool.Pool
}

// NewPostgresPurchases establishes a connection pool to the database at dsn
// and runs the migration to ensure the purchases table exists.
func NewPostgresPurchases(ctx context.Context, dsn string) (*PostgresPurchases, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("purchase store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("purchase store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlPurchases); err != nil {
		pool.Close()
		return nil, fmt.Errorf("purchase store: migrate: %w", err)
	}
	return &PostgresPurchases{pool: pool}, nil
}

// NewPostgresPurchasesFromPool wraps an existing pool, sharing it with other
// stores, and runs the migration.
func NewPostgresPurchasesFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresPurchases, error) {
	if _, err := pool.Exec(ctx, ddlPurchases); err != nil {
		return nil, fmt.Errorf("purchase store: migrate: %w", err)
	}
	return &PostgresPurchases{pool: pool}, nil
}

// Record implements [PurchaseStore]. Conflicting session ids are ignored so
// Stripe webhook retries stay idempotent.
func (s *PostgresPurchases) Record(ctx context.Context, p Purchase) error {
	const q = `
		INSERT INTO purchases (user_id, book_id, stripe_session_id, amount_total, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stripe_session_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, p.UserID, p.BookID, p.StripeSessionID, p.AmountTotal, p.Status)
	if err != nil {
		return fmt.Errorf("purchase store: record %s: %w", p.StripeSessionID, err)
	}
	return nil
}

// ByUser implements [PurchaseStore].
func (s *PostgresPurchases) ByUser(ctx context.Context, userID string) ([]Purchase, error) {
	const q = `
		SELECT user_id, book_id, stripe_session_id, amount_total, status, created_at
		FROM   purchases
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase store: by user: %w", err)
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.UserID, &p.BookID, &p.StripeSessionID, &p.AmountTotal, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("purchase store: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase store: rows: %w", err)
	}
	return out, nil
}

// Close releases all connections held by the underlying pool.
func (s *PostgresPurchases) Close() {
	s.pool.Close()
}
