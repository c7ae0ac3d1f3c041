// Package postgres implements workflow.Store against a Postgres database.
// Grounded on pkg/persistence/postgresql/workflow.go
// CRUD+JSON-column pattern and pkg/eventlog/postgres/postgres.go's
// connection/migration bootstrap, adapted to a workflow directory plus a
// natural-trigger cursor table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/persistence/sqlbase"
	"github.com/dukex/styxgo/pkg/workflow"
)

// Store is a Postgres-backed workflow.Store.
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

func (s *Store) Get(ctx context.Context, id models.WorkflowId) (models.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT schedule, configuration, enabled FROM workflows WHERE component = $1 AND name = $2`,
		id.Component, id.Name,
	)

	wf, err := scanWorkflow(row, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Workflow{}, workflow.ErrNotFound
		}
		return models.Workflow{}, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return wf, nil
}

func (s *Store) List(ctx context.Context) ([]models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT component, name, schedule, configuration, enabled FROM workflows`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		var (
			wf                       models.Workflow
			scheduleJSON, configJSON []byte
		)
		if err := rows.Scan(&wf.ID.Component, &wf.ID.Name, &scheduleJSON, &configJSON, &wf.Enabled); err != nil {
			return nil, fmt.Errorf("scan workflow row: %w", err)
		}
		if err := json.Unmarshal(scheduleJSON, &wf.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule for %s: %w", wf.ID, err)
		}
		if err := json.Unmarshal(configJSON, &wf.Configuration); err != nil {
			return nil, fmt.Errorf("unmarshal configuration for %s: %w", wf.ID, err)
		}
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow rows: %w", err)
	}

	return out, nil
}

func (s *Store) Save(ctx context.Context, wf models.Workflow) error {
	scheduleJSON, err := json.Marshal(wf.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule for %s: %w", wf.ID, err)
	}
	configJSON, err := json.Marshal(wf.Configuration)
	if err != nil {
		return fmt.Errorf("marshal configuration for %s: %w", wf.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (component, name, schedule, configuration, enabled, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (component, name) DO UPDATE SET
			schedule = EXCLUDED.schedule,
			configuration = EXCLUDED.configuration,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()`,
		wf.ID.Component, wf.ID.Name, scheduleJSON, configJSON, wf.Enabled,
	)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id models.WorkflowId) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE component = $1 AND name = $2`, id.Component, id.Name,
	)
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM workflow_trigger_cursors WHERE component = $1 AND name = $2`, id.Component, id.Name,
	)
	if err != nil {
		return fmt.Errorf("delete trigger cursor for %s: %w", id, err)
	}
	return nil
}

func (s *Store) NextTrigger(ctx context.Context, id models.WorkflowId) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT next_trigger FROM workflow_trigger_cursors WHERE component = $1 AND name = $2`,
		id.Component, id.Name,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read trigger cursor for %s: %w", id, err)
	}
	return at, true, nil
}

func (s *Store) SeedNextTrigger(ctx context.Context, id models.WorkflowId, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_trigger_cursors (component, name, next_trigger)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (component, name) DO NOTHING`,
		id.Component, id.Name, at,
	)
	if err != nil {
		return fmt.Errorf("seed trigger cursor for %s: %w", id, err)
	}
	return nil
}

func (s *Store) AdvanceNextTrigger(ctx context.Context, id models.WorkflowId, expected, next time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE workflow_trigger_cursors SET next_trigger = $1
		 WHERE component = $2 AND name = $3 AND next_trigger = $4`,
		next, id.Component, id.Name, expected,
	)
	if err != nil {
		return fmt.Errorf("advance trigger cursor for %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance trigger cursor for %s: %w", id, err)
	}
	if affected == 0 {
		return workflow.ErrCursorConflict
	}
	return nil
}

func scanWorkflow(row *sql.Row, id models.WorkflowId) (models.Workflow, error) {
	var (
		wf                       models.Workflow
		scheduleJSON, configJSON []byte
	)
	wf.ID = id

	if err := row.Scan(&scheduleJSON, &configJSON, &wf.Enabled); err != nil {
		return models.Workflow{}, err
	}
	if err := json.Unmarshal(scheduleJSON, &wf.Schedule); err != nil {
		return models.Workflow{}, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if err := json.Unmarshal(configJSON, &wf.Configuration); err != nil {
		return models.Workflow{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	return wf, nil
}

var _ workflow.Store = (*Store)(nil)
