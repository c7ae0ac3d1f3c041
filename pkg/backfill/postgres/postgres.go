// Package postgres implements backfill.Store against a Postgres database.
// Grounded on pkg/persistence/postgresql/workflow.go
// CRUD+JSON-column pattern and pkg/eventlog/postgres/postgres.go's
// connection/migration bootstrap, adapted to the Backfill row shape with a
// read-for-update transaction backing Store.Update.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dukex/styxgo/pkg/backfill"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/persistence/sqlbase"
)

// Store is a Postgres-backed backfill.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to databaseURL, runs pending migrations, and returns a
// ready-to-use Store.
func Open(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, db, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close postgres connection: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, b models.Backfill) error {
	scheduleJSON, err := json.Marshal(b.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule for backfill %s: %w", b.ID, err)
	}
	paramsJSON, err := json.Marshal(b.TriggerParameters)
	if err != nil {
		return fmt.Errorf("marshal trigger parameters for backfill %s: %w", b.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backfills (id, component, workflow, start_at, end_at, schedule, concurrency,
			next_trigger, description, reverse, all_triggered, halted, trigger_parameters, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.WorkflowId.Component, b.WorkflowId.Name, b.Start, b.End, scheduleJSON, b.Concurrency,
		b.NextTrigger, b.Description, b.Reverse, b.AllTriggered, b.Halted, paramsJSON, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create backfill %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Backfill, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM backfills WHERE id = $1`, id)

	b, err := scanBackfill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Backfill{}, backfill.ErrNotFound
		}
		return models.Backfill{}, fmt.Errorf("get backfill %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) List(ctx context.Context, filter backfill.Filter) ([]models.Backfill, error) {
	query := selectColumns + ` FROM backfills WHERE TRUE`
	var args []any

	if !filter.ShowAll {
		query += ` AND NOT halted AND NOT all_triggered`
	}
	if filter.Component != nil {
		args = append(args, *filter.Component)
		query += fmt.Sprintf(` AND component = $%d`, len(args))
	}
	if filter.Workflow != nil {
		args = append(args, *filter.Workflow)
		query += fmt.Sprintf(` AND workflow = $%d`, len(args))
	}
	query += ` ORDER BY created_at ASC`

	return s.queryBackfills(ctx, query, args...)
}

func (s *Store) ListAdvanceable(ctx context.Context) ([]models.Backfill, error) {
	query := selectColumns + ` FROM backfills WHERE NOT halted AND NOT all_triggered ORDER BY created_at ASC`
	return s.queryBackfills(ctx, query)
}

func (s *Store) queryBackfills(ctx context.Context, query string, args ...any) ([]models.Backfill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backfills: %w", err)
	}
	defer rows.Close()

	var out []models.Backfill
	for rows.Next() {
		b, err := scanBackfill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backfill row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backfill rows: %w", err)
	}
	return out, nil
}

// Update reads the row FOR UPDATE inside a transaction, applies fn, and
// writes the mutable columns back before committing — the transactional
// read-then-write concurrency/description edits need, reused here for the
// advancement loop's cursor moves too.
func (s *Store) Update(ctx context.Context, id string, fn func(*models.Backfill) error) (models.Backfill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Backfill{}, fmt.Errorf("update backfill %s: %w", id, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, selectColumns+` FROM backfills WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBackfill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Backfill{}, backfill.ErrNotFound
		}
		return models.Backfill{}, fmt.Errorf("update backfill %s: %w", id, err)
	}

	if err := fn(&b); err != nil {
		return models.Backfill{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE backfills SET concurrency = $1, description = $2, next_trigger = $3,
			all_triggered = $4, halted = $5 WHERE id = $6`,
		b.Concurrency, b.Description, b.NextTrigger, b.AllTriggered, b.Halted, id,
	)
	if err != nil {
		return models.Backfill{}, fmt.Errorf("update backfill %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Backfill{}, fmt.Errorf("update backfill %s: %w", id, err)
	}

	return b, nil
}

const selectColumns = `SELECT id, component, workflow, start_at, end_at, schedule, concurrency,
	next_trigger, description, reverse, all_triggered, halted, trigger_parameters, created_at`

func scanBackfill(scanner interface{ Scan(dest ...any) error }) (models.Backfill, error) {
	var (
		b                        models.Backfill
		scheduleJSON, paramsJSON []byte
	)

	err := scanner.Scan(
		&b.ID, &b.WorkflowId.Component, &b.WorkflowId.Name, &b.Start, &b.End, &scheduleJSON, &b.Concurrency,
		&b.NextTrigger, &b.Description, &b.Reverse, &b.AllTriggered, &b.Halted, &paramsJSON, &b.CreatedAt,
	)
	if err != nil {
		return models.Backfill{}, err
	}

	if err := json.Unmarshal(scheduleJSON, &b.Schedule); err != nil {
		return models.Backfill{}, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &b.TriggerParameters); err != nil {
			return models.Backfill{}, fmt.Errorf("unmarshal trigger parameters: %w", err)
		}
	}

	return b, nil
}

var _ backfill.Store = (*Store)(nil)
