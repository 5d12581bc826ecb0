// Package watermill adapts Watermill publishers and subscribers to the
// messaging interfaces. Kafka is reached through watermill-kafka (sarama);
// the GoChannel variant keeps events in-process for single-node runs.
package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
)

const partitionKeyMetadata = "partition_key"

type broker struct {
	publisher message.Publisher
	// subscriber returns a subscriber for the consumer group and a func releasing it.
	subscriber func(groupID string) (message.Subscriber, func() error, error)
}

// NewKafkaBroker creates a broker publishing to and consuming from Kafka.
func NewKafkaBroker(brokers []string, clientID string, logger *slog.Logger) (messaging.Broker, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(partitionKeyMetadata), nil
	})

	pubCfg := kafka.DefaultSaramaSyncPublisherConfig()
	pubCfg.ClientID = clientID
	pubCfg.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: pubCfg,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	subscriber := func(groupID string) (message.Subscriber, func() error, error) {
		subCfg := kafka.DefaultSaramaSubscriberConfig()
		subCfg.ClientID = clientID
		subCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

		sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: subCfg,
			ConsumerGroup:         groupID,
		}, wmLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
		}
		return sub, sub.Close, nil
	}

	return &broker{publisher: publisher, subscriber: subscriber}, nil
}

// NewGoChannelBroker creates an in-process broker. Consumer groups are ignored:
// every Consume call receives every message.
func NewGoChannelBroker(logger *slog.Logger) messaging.Broker {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))

	return &broker{
		publisher: pubSub,
		subscriber: func(string) (message.Subscriber, func() error, error) {
			return pubSub, func() error { return nil }, nil
		},
	}
}

func (b *broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(partitionKeyMetadata, key)
	msg.SetContext(ctx)

	return b.publisher.Publish(topic, msg)
}

func (b *broker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	sub, release, err := b.subscriber(groupID)
	if err != nil {
		slog.Error("Failed to create subscriber", "topic", topic, "err", err)
		return
	}
	defer release()

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		slog.Error("Failed to subscribe", "topic", topic, "err", err)
		return
	}

	for msg := range messages {
		// Failed messages are logged and acknowledged, as with the kafka-go consumer.
		if err := handler(ctx, msg.Payload); err != nil {
			slog.Error("Error handling message", "topic", topic, "message_uuid", msg.UUID, "err", err)
		}
		msg.Ack()
	}
	slog.Info("Consumer shutting down", "topic", topic)
}

func (b *broker) Close() error {
	if err := b.publisher.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close publisher: %w", err)
	}
	return nil
}
