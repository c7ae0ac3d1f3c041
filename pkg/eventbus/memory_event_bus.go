package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	stdlog "github.com/dukex/styxgo/pkg/log"
)

// MemoryEventBus backs EventBus with Watermill's in-process gochannel
// pub/sub, for development mode and tests where no Kafka cluster is
// available. Uses the same watermill.Message envelope as KafkaEventBus so
// PublisherHandler's call site never has to know which backend it holds.
type MemoryEventBus struct {
	pubSub *gochannel.GoChannel
}

// NewMemoryEventBus returns a ready-to-use MemoryEventBus.
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(stdlog.WithModule("memory_event_bus"))),
	}
}

// Subscribe returns the channel of published messages, for tests that want
// to assert on what PublisherHandler emitted.
func (b *MemoryEventBus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

func (b *MemoryEventBus) Publish(_ context.Context, key string, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", key)
	msg.Metadata.Set("type", string(notification.Type))

	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish notification for %s: %w", key, err)
	}

	return nil
}

func (b *MemoryEventBus) Close() error {
	return b.pubSub.Close()
}

var _ EventBus = (*MemoryEventBus)(nil)
