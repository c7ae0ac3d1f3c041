// Package postgres implements eventlog.Store against a Postgres database.
// Grounded on pkg/persistence/postgresql/postgres.go
// connection/migration bootstrap and execution_context_repository.go's
// JSON-column marshal/scan pattern, adapted from a workflow-CRUD store to
// an append-only event log with a separate active-instance index table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dukex/styxgo/pkg/eventlog"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/persistence/sqlbase"
)

// Store is a Postgres-backed eventlog.Store.
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

// HealthCheck verifies the database connection is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, instance models.WorkflowInstance, event models.Event, expectedCounter int64) (int64, error) {
	payload, err := models.MarshalEvent(event)
	if err != nil {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: fmt.Errorf("marshal event: %w", err)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(counter), 0) FROM events WHERE component = $1 AND workflow = $2 AND parameter = $3`,
		instance.WorkflowId.Component, instance.WorkflowId.Name, instance.Parameter,
	).Scan(&current)
	if err != nil {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: err}
	}

	if current != expectedCounter {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: eventlog.ErrConflict}
	}

	newCounter := current + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (component, workflow, parameter, counter, event_type, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		instance.WorkflowId.Component, instance.WorkflowId.Name, instance.Parameter,
		newCounter, string(event.Type()), payload,
	)
	if err != nil {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &eventlog.EventLogError{Op: "Append", Instance: instance, Err: err}
	}

	return newCounter, nil
}

func (s *Store) ReadEvents(ctx context.Context, instance models.WorkflowInstance) ([]eventlog.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT counter, payload, occurred_at FROM events
		 WHERE component = $1 AND workflow = $2 AND parameter = $3
		 ORDER BY counter ASC`,
		instance.WorkflowId.Component, instance.WorkflowId.Name, instance.Parameter,
	)
	if err != nil {
		return nil, &eventlog.EventLogError{Op: "ReadEvents", Instance: instance, Err: err}
	}
	defer rows.Close()

	var out []eventlog.StoredEvent
	for rows.Next() {
		var (
			counter    int64
			payload    []byte
			occurredAt sql.NullTime
		)
		if err := rows.Scan(&counter, &payload, &occurredAt); err != nil {
			return nil, &eventlog.EventLogError{Op: "ReadEvents", Instance: instance, Err: err}
		}

		event, err := models.UnmarshalEvent(payload)
		if err != nil {
			return nil, &eventlog.EventLogError{Op: "ReadEvents", Instance: instance, Err: fmt.Errorf("unmarshal event at counter %d: %w", counter, err)}
		}

		out = append(out, eventlog.StoredEvent{Event: event, Counter: counter, Timestamp: occurredAt.Time})
	}
	if err := rows.Err(); err != nil {
		return nil, &eventlog.EventLogError{Op: "ReadEvents", Instance: instance, Err: err}
	}

	return out, nil
}

func (s *Store) IndexUpsert(ctx context.Context, instance models.WorkflowInstance, counter int64, triggerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_instances (component, workflow, parameter, counter, trigger_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (component, workflow, parameter) DO UPDATE SET
			counter = EXCLUDED.counter, trigger_id = EXCLUDED.trigger_id`,
		instance.WorkflowId.Component, instance.WorkflowId.Name, instance.Parameter, counter, triggerID,
	)
	if err != nil {
		return &eventlog.EventLogError{Op: "IndexUpsert", Instance: instance, Err: err}
	}
	return nil
}

func (s *Store) IndexRemove(ctx context.Context, instance models.WorkflowInstance) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM active_instances WHERE component = $1 AND workflow = $2 AND parameter = $3`,
		instance.WorkflowId.Component, instance.WorkflowId.Name, instance.Parameter,
	)
	if err != nil {
		return &eventlog.EventLogError{Op: "IndexRemove", Instance: instance, Err: err}
	}
	return nil
}

func (s *Store) IndexRead(ctx context.Context) (map[string]eventlog.ActiveEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT component, workflow, parameter, counter, trigger_id FROM active_instances`)
	if err != nil {
		return nil, fmt.Errorf("index read: %w", err)
	}
	defer rows.Close()

	return scanActiveEntries(rows)
}

func (s *Store) IndexReadByTriggerID(ctx context.Context, triggerID string) (map[string]eventlog.ActiveEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT component, workflow, parameter, counter, trigger_id FROM active_instances WHERE trigger_id = $1`,
		triggerID,
	)
	if err != nil {
		return nil, fmt.Errorf("index read by trigger id: %w", err)
	}
	defer rows.Close()

	return scanActiveEntries(rows)
}

func scanActiveEntries(rows *sql.Rows) (map[string]eventlog.ActiveEntry, error) {
	out := make(map[string]eventlog.ActiveEntry)
	for rows.Next() {
		var (
			component, workflow, parameter, triggerID string
			counter                                    int64
		)
		if err := rows.Scan(&component, &workflow, &parameter, &counter, &triggerID); err != nil {
			return nil, fmt.Errorf("scan active instance row: %w", err)
		}

		instance := models.WorkflowInstance{
			WorkflowId: models.WorkflowId{Component: component, Name: workflow},
			Parameter:  parameter,
		}
		out[instance.String()] = eventlog.ActiveEntry{Instance: instance, Counter: counter, TriggerID: triggerID}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active instance rows: %w", err)
	}

	return out, nil
}

var _ eventlog.Store = (*Store)(nil)
