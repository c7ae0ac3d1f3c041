package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalEvent_RoundTrip(t *testing.T) {
	instance := WorkflowInstance{WorkflowId: WorkflowId{Component: "comp", Name: "wf"}, Parameter: "2020-01-01"}
	header := EventHeader{WorkflowInstance: instance, Counter: 7}

	testCases := []struct {
		name  string
		event Event
	}{
		{"trigger execution", TriggerExecution{EventHeader: header, TriggerID: "natural-abc", TriggerType: "natural"}},
		{"dequeue", Dequeue{EventHeader: header}},
		{"submit", Submit{EventHeader: header, ExecutionDescription: "docker://image"}},
		{"submitted", Submitted{EventHeader: header, ExecutionID: "exec-1"}},
		{"started", Started{EventHeader: header}},
		{"terminate success", Terminate{EventHeader: header, ExitCode: intPtr(0)}},
		{"run error", RunError{EventHeader: header, Message: "boom"}},
		{"retry after", RetryAfter{EventHeader: header, DelayMillis: 5000}},
		{"retry", Retry{EventHeader: header}},
		{"halt", Halt{EventHeader: header}},
		{"timeout", Timeout{EventHeader: header}},
		{"info", Info{EventHeader: header, Level: "info", Message: "hello"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalEvent(tc.event)
			require.NoError(t, err)

			decoded, err := UnmarshalEvent(data)
			require.NoError(t, err)

			assert.Equal(t, tc.event.Type(), decoded.Type())
			assert.Equal(t, tc.event.Header(), decoded.Header())
		})
	}
}

func TestUnmarshalEvent_UnknownType(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"NotARealEvent"}`))
	assert.Error(t, err)
}

func intPtr(i int) *int { return &i }
