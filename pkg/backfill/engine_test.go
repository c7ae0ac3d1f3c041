package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/eventlog"
	"github.com/dukex/styxgo/pkg/handlers"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/statemanager"
	"github.com/dukex/styxgo/pkg/workflow"
)

func testWorkflowId() models.WorkflowId {
	return models.WorkflowId{Component: "c", Name: "w"}
}

func configuredWorkflow() models.Workflow {
	image := "gcr.io/example/image:latest"
	return models.Workflow{
		ID:            testWorkflowId(),
		Schedule:      models.Schedule{Kind: models.Days},
		Configuration: models.WorkflowConfiguration{DockerImage: &image},
		Enabled:       true,
	}
}

func newTestEngine(t *testing.T) (*Engine, *statemanager.Manager, workflow.Store) {
	t.Helper()

	events := eventlog.NewMemoryStore()
	workflows := workflow.NewMemoryStore()
	backfills := NewMemoryStore()

	require.NoError(t, workflows.Save(context.Background(), configuredWorkflow()))

	manager := statemanager.New(events, []handlers.Handler{})
	engine := New(backfills, workflows, events, manager)
	engine.now = func() time.Time { return time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC) }

	return engine, manager, workflows
}

func TestCreate_RejectsUnknownWorkflow(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Create(context.Background(), CreateInput{
		WorkflowId:  models.WorkflowId{Component: "nope", Name: "nope"},
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})

	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestCreate_RejectsFuturePartitionsUnlessAllowed(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	input := CreateInput{
		WorkflowId:  testWorkflowId(),
		Start:       time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 6, 10, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	}

	_, err := engine.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrFuturePartition)

	input.AllowFuture = true
	b, err := engine.Create(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, b.Halted)
	assert.False(t, b.AllTriggered)
}

func TestCreate_RejectsMisalignedRange(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Create(context.Background(), CreateInput{
		WorkflowId:  testWorkflowId(),
		Start:       time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})

	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestCreate_SeedsNextTriggerForwardAndReverse(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)

	forward, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1,
	})
	require.NoError(t, err)
	assert.True(t, forward.NextTrigger.Equal(start))

	reverse, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1, Reverse: true,
	})
	require.NoError(t, err)
	assert.True(t, reverse.NextTrigger.Equal(time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC)))
}

func TestAdvance_TriggersUpToConcurrencyThenStops(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 2,
	})
	require.NoError(t, err)

	engine.Advance(context.Background())

	got, err := engine.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, got.NextTrigger.Equal(start.AddDate(0, 0, 2)), "cursor should advance by exactly concurrency partitions")
	assert.False(t, got.AllTriggered)

	active, err := engine.events.IndexReadByTriggerID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestAdvance_MarksAllTriggeredWhenRangeExhausted(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 10,
	})
	require.NoError(t, err)

	engine.Advance(context.Background())

	got, err := engine.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, got.AllTriggered)
}

func TestHalt_StopsFurtherAdvancementButLeavesActiveInstances(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1,
	})
	require.NoError(t, err)

	engine.Advance(context.Background())
	require.NoError(t, engine.Halt(context.Background(), b.ID))

	halted, err := engine.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, halted.Halted)

	before := halted.NextTrigger
	engine.Advance(context.Background())

	after, err := engine.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, after.NextTrigger.Equal(before), "halted backfill must not advance")
}

func TestUpdate_ChangesConcurrencyAndDescriptionOnly(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1,
	})
	require.NoError(t, err)

	concurrency := 5
	description := "reprocessing january"
	updated, err := engine.Update(context.Background(), b.ID, &concurrency, &description)
	require.NoError(t, err)

	assert.Equal(t, 5, updated.Concurrency)
	assert.Equal(t, "reprocessing january", updated.Description)
	assert.True(t, updated.Start.Equal(start), "immutable fields must survive an update")
}

func TestUpdate_RejectsZeroConcurrency(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1,
	})
	require.NoError(t, err)

	zero := 0
	_, err = engine.Update(context.Background(), b.ID, &zero, nil)
	assert.ErrorIs(t, err, models.ErrBackfillConcurrency)
}

func TestStatus_ReportsProcessedThenWaiting(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)

	b, err := engine.Create(context.Background(), CreateInput{
		WorkflowId: testWorkflowId(), Start: start, End: end, Concurrency: 1,
	})
	require.NoError(t, err)

	engine.Advance(context.Background())

	statuses, err := engine.Status(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 4)

	assert.Equal(t, "2020-01-01", statuses[0].WorkflowInstance.Parameter)
	assert.NotEqual(t, StateWaiting, statuses[0].State)

	for _, s := range statuses[1:] {
		assert.Equal(t, StateWaiting, s.State)
	}
}
