package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/models"
)

type fakeSource struct {
	states []models.RunState
}

func (f *fakeSource) ActiveStates() []models.RunState { return f.states }

type fakeEmitter struct {
	received []models.Event
	err      error
}

func (f *fakeEmitter) Receive(_ context.Context, _ models.WorkflowInstance, event models.Event) error {
	f.received = append(f.received, event)
	return f.err
}

func instance(param string) models.WorkflowInstance {
	return models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "c", Name: "w"},
		Parameter:  param,
	}
}

func TestTick_EmitsTimeoutPastTTL(t *testing.T) {
	now := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{states: []models.RunState{
		{WorkflowInstance: instance("2020-01-01"), State: models.StateSubmitted, Timestamp: now.Add(-2 * time.Hour)},
		{WorkflowInstance: instance("2020-01-02"), State: models.StateSubmitted, Timestamp: now.Add(-10 * time.Minute)},
	}}
	emitter := &fakeEmitter{}

	s := New(source, emitter, func(models.State) (time.Duration, error) { return time.Hour, nil })
	s.Tick(context.Background(), now)

	require.Len(t, emitter.received, 1)
	assert.Equal(t, models.EventTimeout, emitter.received[0].Type())
}

func TestTick_SkipsWhenUnderTTL(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeSource{states: []models.RunState{
		{WorkflowInstance: instance("2020-01-01"), State: models.StateSubmitted, Timestamp: now},
	}}
	emitter := &fakeEmitter{}

	s := New(source, emitter, func(models.State) (time.Duration, error) { return time.Hour, nil })
	s.Tick(context.Background(), now)

	assert.Empty(t, emitter.received)
}

func TestTick_TTLResolutionErrorSkipsInstanceWithoutPanicking(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeSource{states: []models.RunState{
		{WorkflowInstance: instance("2020-01-01"), State: models.StateSubmitted, Timestamp: now.Add(-time.Hour)},
	}}
	emitter := &fakeEmitter{}

	s := New(source, emitter, func(models.State) (time.Duration, error) { return 0, errors.New("bad config") })
	s.Tick(context.Background(), now)

	assert.Empty(t, emitter.received)
}

func TestTickGuarded_SkipsOverlappingTick(t *testing.T) {
	source := &fakeSource{}
	emitter := &fakeEmitter{}
	s := New(source, emitter, func(models.State) (time.Duration, error) { return time.Hour, nil })

	s.running.Store(true)
	s.tickGuarded(context.Background())
	assert.True(t, s.running.Load(), "guarded tick must not clear the flag it did not set")
}

func TestTickGuarded_RecoversPanicFromTick(t *testing.T) {
	source := &panickingSource{}
	emitter := &fakeEmitter{}
	s := New(source, emitter, func(models.State) (time.Duration, error) { return time.Hour, nil })

	assert.NotPanics(t, func() { s.tickGuarded(context.Background()) })
}

type panickingSource struct{}

func (panickingSource) ActiveStates() []models.RunState { panic("boom") }
