package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/handlers"
	"github.com/dukex/styxgo/pkg/models"
)

// recordingEmitter captures every event handed to Receive, grounded on the
// teacher's pattern of a minimal fake collaborator over a full mock where
// only call capture is needed.
type recordingEmitter struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *recordingEmitter) Receive(_ context.Context, _ models.WorkflowInstance, event models.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) last() models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		return nil
	}
	return e.events[len(e.events)-1]
}

func testInstance() models.WorkflowInstance {
	return models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "c", Name: "w"},
		Parameter:  "2020-01-01",
	}
}

func TestDequeueHandler_PassesThroughOnlyFromQueued(t *testing.T) {
	emitter := &recordingEmitter{}
	h := handlers.NewDequeueHandler(emitter)

	h.TransitionInto(context.Background(), models.RunState{
		WorkflowInstance: testInstance(),
		State:            models.StateQueued,
	})
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.EventDequeue, emitter.last().Type())

	h.TransitionInto(context.Background(), models.RunState{
		WorkflowInstance: testInstance(),
		State:            models.StatePrepare,
	})
	assert.Len(t, emitter.events, 1, "non-QUEUED transitions must not emit")
}

func TestTerminationHandler_RetriesBelowMaxRetries(t *testing.T) {
	emitter := &recordingEmitter{}
	h := handlers.NewTerminationHandler(time.Second, 4, time.Minute, 3, emitter)

	h.TransitionInto(context.Background(), models.RunState{
		WorkflowInstance: testInstance(),
		State:            models.StateTerminated,
		StateData:        models.StateData{RetryCost: 0},
	})

	require.Len(t, emitter.events, 1)
	retry, ok := emitter.last().(models.RetryAfter)
	require.True(t, ok)
	assert.Equal(t, time.Second.Milliseconds(), retry.DelayMillis)
}

func TestTerminationHandler_GivesUpAtMaxRetries(t *testing.T) {
	emitter := &recordingEmitter{}
	h := handlers.NewTerminationHandler(time.Second, 4, time.Minute, 3, emitter)

	h.TransitionInto(context.Background(), models.RunState{
		WorkflowInstance: testInstance(),
		State:            models.StateTerminated,
		StateData:        models.StateData{RetryCost: 3},
	})

	require.Len(t, emitter.events, 1)
	_, ok := emitter.last().(models.RunError)
	assert.True(t, ok, "exhausted retries must fail the instance, not schedule another retry")
}
