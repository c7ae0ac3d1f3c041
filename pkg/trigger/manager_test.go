package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/workflow"
)

type fakeEmitter struct {
	received []models.Event
	err      error
}

func (f *fakeEmitter) Receive(_ context.Context, _ models.WorkflowInstance, event models.Event) error {
	f.received = append(f.received, event)
	return f.err
}

func dailyWorkflow(id models.WorkflowId) models.Workflow {
	return models.Workflow{ID: id, Schedule: models.Schedule{Kind: models.Days}, Enabled: true}
}

func TestWarmUp_SeedsCursorForEveryEnabledWorkflow(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	require.NoError(t, store.Save(context.Background(), dailyWorkflow(id)))

	m := New(store, &fakeEmitter{})
	require.NoError(t, m.WarmUp(context.Background()))

	_, ok, err := store.NextTrigger(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTick_FiresDuePartitionAndAdvancesCursor(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	require.NoError(t, store.Save(context.Background(), dailyWorkflow(id)))

	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SeedNextTrigger(context.Background(), id, due))

	emitter := &fakeEmitter{}
	m := New(store, emitter)
	require.NoError(t, m.WarmUp(context.Background()))

	m.Tick(context.Background(), due.Add(time.Minute))

	require.Len(t, emitter.received, 2)
	_, ok := emitter.received[0].(models.Created)
	require.True(t, ok)
	trigger, ok := emitter.received[1].(models.TriggerExecution)
	require.True(t, ok)
	assert.Equal(t, "natural", trigger.TriggerType)
	assert.Equal(t, "2020-01-01", trigger.Header().WorkflowInstance.Parameter)

	cursor, ok, err := store.NextTrigger(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, due.AddDate(0, 0, 1), cursor)
}

func TestTick_SkipsWorkflowWhoseCursorIsNotYetDue(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	require.NoError(t, store.Save(context.Background(), dailyWorkflow(id)))

	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SeedNextTrigger(context.Background(), id, future))

	emitter := &fakeEmitter{}
	m := New(store, emitter)
	require.NoError(t, m.WarmUp(context.Background()))

	m.Tick(context.Background(), time.Now().UTC())

	assert.Empty(t, emitter.received)
}

func TestTick_SkipsDisabledWorkflow(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	wf := dailyWorkflow(id)
	wf.Enabled = false
	require.NoError(t, store.Save(context.Background(), wf))

	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SeedNextTrigger(context.Background(), id, due))

	emitter := &fakeEmitter{}
	m := New(store, emitter)
	require.NoError(t, m.WarmUp(context.Background()))

	m.Tick(context.Background(), due.Add(time.Hour))

	assert.Empty(t, emitter.received)
}

func TestTick_CatchesUpMultipleOverduePartitions(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	require.NoError(t, store.Save(context.Background(), dailyWorkflow(id)))

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SeedNextTrigger(context.Background(), id, start))

	emitter := &fakeEmitter{}
	m := New(store, emitter)
	require.NoError(t, m.WarmUp(context.Background()))

	m.Tick(context.Background(), start.AddDate(0, 0, 5))

	// Jan 1 through Jan 6 are due (a cursor equal to now counts), each
	// firing a Created followed by a TriggerExecution.
	assert.Len(t, emitter.received, 12)
}

func TestTickGuarded_SkipsOverlappingTick(t *testing.T) {
	store := workflow.NewMemoryStore()
	m := New(store, &fakeEmitter{})

	m.running.Store(true)
	m.tickGuarded(context.Background())
	assert.True(t, m.running.Load(), "guarded tick must not clear the flag it did not set")
}

func TestTickGuarded_RecoversPanicFromTick(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := models.WorkflowId{Component: "c", Name: "w"}
	require.NoError(t, store.Save(context.Background(), dailyWorkflow(id)))
	require.NoError(t, store.SeedNextTrigger(context.Background(), id, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	m := New(store, &panickingEmitter{})
	require.NoError(t, m.WarmUp(context.Background()))

	assert.NotPanics(t, func() { m.tickGuarded(context.Background()) })
}

type panickingEmitter struct{}

func (panickingEmitter) Receive(context.Context, models.WorkflowInstance, models.Event) error {
	panic("boom")
}
