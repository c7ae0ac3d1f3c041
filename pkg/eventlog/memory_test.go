package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/models"
)

func testInstance() models.WorkflowInstance {
	return models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "comp", Name: "wf"},
		Parameter:  "2020-01-01",
	}
}

func TestMemoryStore_AppendAndReadEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	instance := testInstance()

	counter, err := store.Append(ctx, instance, models.TriggerExecution{TriggerID: "natural-1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter)

	counter, err = store.Append(ctx, instance, models.Dequeue{}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counter)

	events, err := store.ReadEvents(ctx, instance)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTriggerExecution, events[0].Event.Type())
	assert.Equal(t, models.EventDequeue, events[1].Event.Type())
}

func TestMemoryStore_AppendConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	instance := testInstance()

	_, err := store.Append(ctx, instance, models.TriggerExecution{}, 0)
	require.NoError(t, err)

	_, err = store.Append(ctx, instance, models.Dequeue{}, 0)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestMemoryStore_Index(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	instance := testInstance()

	require.NoError(t, store.IndexUpsert(ctx, instance, 1, "natural-1"))

	index, err := store.IndexRead(ctx)
	require.NoError(t, err)
	require.Contains(t, index, instance.String())

	byTrigger, err := store.IndexReadByTriggerID(ctx, "natural-1")
	require.NoError(t, err)
	assert.Contains(t, byTrigger, instance.String())

	require.NoError(t, store.IndexRemove(ctx, instance))
	index, err = store.IndexRead(ctx)
	require.NoError(t, err)
	assert.NotContains(t, index, instance.String())
}
