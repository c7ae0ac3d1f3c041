package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	eventlogpg "github.com/dukex/styxgo/pkg/eventlog/postgres"
	"github.com/dukex/styxgo/pkg/models"
)

var pgContainer *postgres.PostgresContainer

func dropSchema(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"active_instances", "events", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupStore(t *testing.T) (*eventlogpg.Store, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if pgContainer == nil || !pgContainer.IsRunning() {
		var err error
		pgContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("styxgo_test"),
			postgres.WithUsername("styxgo"),
			postgres.WithPassword("styxgo"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropSchema(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := eventlogpg.Open(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropSchema(ctx, t, databaseURL)
		_ = store.Close()
		cancel()
	})

	return store, ctx
}

func TestStore_AppendReadAndConflict(t *testing.T) {
	store, ctx := setupStore(t)

	instance := models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "comp", Name: "wf"},
		Parameter:  "2020-01-01",
	}

	counter, err := store.Append(ctx, instance, models.TriggerExecution{TriggerID: "natural-1", TriggerType: "natural"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter)

	_, err = store.Append(ctx, instance, models.Dequeue{}, 0)
	require.Error(t, err)

	counter, err = store.Append(ctx, instance, models.Dequeue{}, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counter)

	events, err := store.ReadEvents(ctx, instance)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTriggerExecution, events[0].Event.Type())
	assert.Equal(t, models.EventDequeue, events[1].Event.Type())
}

func TestStore_ActiveInstanceIndex(t *testing.T) {
	store, ctx := setupStore(t)

	instance := models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "comp", Name: "wf"},
		Parameter:  "2020-01-02",
	}

	require.NoError(t, store.IndexUpsert(ctx, instance, 1, "natural-2"))

	index, err := store.IndexRead(ctx)
	require.NoError(t, err)
	require.Contains(t, index, instance.String())

	byTrigger, err := store.IndexReadByTriggerID(ctx, "natural-2")
	require.NoError(t, err)
	assert.Contains(t, byTrigger, instance.String())

	require.NoError(t, store.IndexRemove(ctx, instance))
	index, err = store.IndexRead(ctx)
	require.NoError(t, err)
	assert.NotContains(t, index, instance.String())
}
