package runstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/models"
)

var now = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestApply_HappyPath(t *testing.T) {
	state := models.StateNew
	data := models.StateData{}

	state, data, err := Apply(state, data, models.TriggerExecution{TriggerID: "natural-1", TriggerType: "natural"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateQueued, state)
	assert.Equal(t, "natural-1", data.TriggerID)

	state, data, err = Apply(state, data, models.Dequeue{}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatePrepare, state)

	state, data, err = Apply(state, data, models.Submit{ExecutionDescription: "docker://image"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateSubmitting, state)
	assert.Equal(t, "docker://image", data.ExecutionDescription)

	state, data, err = Apply(state, data, models.Submitted{ExecutionID: "exec-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateSubmitted, state)
	assert.Equal(t, "exec-1", data.ExecutionID)

	state, data, err = Apply(state, data, models.Started{}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, state)

	exit := 0
	state, data, err = Apply(state, data, models.Terminate{ExitCode: &exit}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, state)
	assert.True(t, state.IsTerminal())
}

func TestApply_NonZeroExitGoesToTerminated(t *testing.T) {
	exit := 1
	state, _, err := Apply(models.StateRunning, models.StateData{}, models.Terminate{ExitCode: &exit}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateTerminated, state)
}

func TestApply_RetryCycle(t *testing.T) {
	state, data, err := Apply(models.StateTerminated, models.StateData{}, models.RetryAfter{DelayMillis: 5000}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingRetry, state)
	assert.Equal(t, int64(5000), data.RetryDelayMillis)

	state, data, err = Apply(state, data, models.Retry{}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateQueued, state)
	assert.Equal(t, 1, data.RetryCost)
}

func TestApply_RunErrorFromTerminated(t *testing.T) {
	state, data, err := Apply(models.StateTerminated, models.StateData{}, models.RunError{Message: "retries exhausted"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, state)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "retries exhausted", data.Messages[0].Line)
}

func TestApply_WildcardEvents(t *testing.T) {
	testCases := []struct {
		name  string
		from  models.State
		event models.Event
		want  models.State
	}{
		{"halt from queued", models.StateQueued, models.Halt{}, models.StateDone},
		{"halt from running", models.StateRunning, models.Halt{}, models.StateDone},
		{"timeout from submitted", models.StateSubmitted, models.Timeout{}, models.StateFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := Apply(tc.from, models.StateData{}, tc.event, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApply_InfoAppendsMessageWithoutChangingState(t *testing.T) {
	state, data, err := Apply(models.StateRunning, models.StateData{}, models.Info{Level: "info", Message: "heartbeat"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, state)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "heartbeat", data.Messages[0].Line)
}

func TestApply_IllegalTransition(t *testing.T) {
	_, _, err := Apply(models.StateNew, models.StateData{}, models.Started{}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	var ite IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.StateNew, ite.State)
	assert.Equal(t, models.EventStarted, ite.Event)
}

func TestApply_RejectsEventsOnTerminalState(t *testing.T) {
	_, _, err := Apply(models.StateDone, models.StateData{}, models.Info{Level: "info", Message: "too late"}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRetryDelay(t *testing.T) {
	base := 10 * time.Second
	assert.Equal(t, 10*time.Second, RetryDelay(base, 0, 6, 0))
	assert.Equal(t, 20*time.Second, RetryDelay(base, 1, 6, 0))
	assert.Equal(t, 40*time.Second, RetryDelay(base, 2, 6, 0))
	// capped at maxExponent
	assert.Equal(t, RetryDelay(base, 6, 6, 0), RetryDelay(base, 100, 6, 0))
	// capped at ceiling
	assert.Equal(t, 5*time.Minute, RetryDelay(base, 100, 6, 5*time.Minute))
}
