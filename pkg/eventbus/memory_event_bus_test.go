package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/styxgo/pkg/models"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus := NewMemoryEventBus()
	defer bus.Close()

	messages, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	instance := models.WorkflowInstance{
		WorkflowId: models.WorkflowId{Component: "comp", Name: "wf"},
		Parameter:  "2020-01-01",
	}

	require.NoError(t, bus.Publish(ctx, instance.String(), Notification{
		Type:             NotificationDone,
		WorkflowInstance: instance,
		State:            models.StateDone,
		OccurredAt:       time.Now(),
	}))

	select {
	case msg := <-messages:
		var n Notification
		require.NoError(t, json.Unmarshal(msg.Payload, &n))
		assert.Equal(t, NotificationDone, n.Type)
		assert.Equal(t, instance, n.WorkflowInstance)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for published notification")
	}
}
