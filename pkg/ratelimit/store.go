package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
)

// RateStore resolves the single global submission rate persisted in a
// global config table. Only the runtime-config refresh ticker reads it.
type RateStore interface {
	Rate(ctx context.Context) (permitsPerSecond float64, err error)
}

// StaticRateStore always returns the same configured rate. Used when no
// operator-mutable rate table is wired in (development mode).
type StaticRateStore float64

// Rate implements RateStore.
func (s StaticRateStore) Rate(context.Context) (float64, error) {
	return float64(s), nil
}

// PostgresRateStore reads the rate from a single-row submission_rate table,
// so an operator can change it without restarting the process. Grounded on
// pkg/eventlog/postgres's sql.DB-over-lib/pq usage; this is the one piece
// of persisted state simple enough not to need its own package.
type PostgresRateStore struct {
	db *sql.DB
}

// NewPostgresRateStore wraps an already-open database handle.
func NewPostgresRateStore(db *sql.DB) *PostgresRateStore {
	return &PostgresRateStore{db: db}
}

// EnsureSchema creates the submission_rate table and its single default
// row if they don't already exist.
func (s *PostgresRateStore) EnsureSchema(ctx context.Context, defaultRate float64) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS submission_rate (
		id INT PRIMARY KEY DEFAULT 1,
		permits_per_second DOUBLE PRECISION NOT NULL,
		CONSTRAINT submission_rate_singleton CHECK (id = 1)
	)`); err != nil {
		return fmt.Errorf("create submission_rate table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_rate (id, permits_per_second) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		defaultRate,
	); err != nil {
		return fmt.Errorf("seed submission_rate row: %w", err)
	}

	return nil
}

// Rate implements RateStore.
func (s *PostgresRateStore) Rate(ctx context.Context) (float64, error) {
	var rate float64
	if err := s.db.QueryRowContext(ctx, `SELECT permits_per_second FROM submission_rate WHERE id = 1`).Scan(&rate); err != nil {
		return 0, fmt.Errorf("read submission rate: %w", err)
	}
	return rate, nil
}

// SetRate persists a new rate, for an eventual admin endpoint to call.
func (s *PostgresRateStore) SetRate(ctx context.Context, permitsPerSecond float64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE submission_rate SET permits_per_second = $1 WHERE id = 1`, permitsPerSecond,
	); err != nil {
		return fmt.Errorf("set submission rate: %w", err)
	}
	return nil
}
