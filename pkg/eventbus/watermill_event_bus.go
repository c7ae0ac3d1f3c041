// Kafka-backed EventBus via Watermill, grounded on dukex/operion's
// pkg/eventbus/watermill_event_bus.go (message construction, metadata
// tagging) and pkg/eventbus/kafka_source_event_bus.go (the
// publisher-wraps-a-Watermill-Publisher shape), adapted from
// segmentio/kafka-go onto this module's watermill-kafka/v3 + IBM/sarama
// pairing.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	stdlog "github.com/dukex/styxgo/pkg/log"
)

const topic = "styx.workflow-instance-notifications"

// KafkaEventBus publishes Notifications onto a Kafka topic via Watermill.
type KafkaEventBus struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewKafkaEventBus dials brokers and returns a ready-to-use KafkaEventBus.
func NewKafkaEventBus(brokers []string) (*KafkaEventBus, error) {
	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Version = sarama.V2_8_0_0

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
	}, watermill.NewSlogLogger(stdlog.WithModule("kafka_event_bus")))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}

	return &KafkaEventBus{
		publisher: publisher,
		logger:    stdlog.WithModule("kafka_event_bus"),
	}, nil
}

func (b *KafkaEventBus) Publish(_ context.Context, key string, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", key)
	msg.Metadata.Set("type", string(notification.Type))

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish notification for %s: %w", key, err)
	}

	return nil
}

func (b *KafkaEventBus) Close() error {
	return b.publisher.Close()
}

var _ EventBus = (*KafkaEventBus)(nil)
