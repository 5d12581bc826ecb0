package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
)

// Exchange is the topic exchange events are routed through; topics are routing keys.
const Exchange = "storefront.events"

type rabbitBroker struct {
	conn *amqp.Connection

	mu sync.Mutex // guards ch, which must not be used concurrently
	ch *amqp.Channel
}

// NewRabbitBroker dials uri and declares the events exchange.
func NewRabbitBroker(uri string) (messaging.Broker, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitBroker{conn: conn, ch: ch}, nil
}

func (r *rabbitBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ch.PublishWithContext(ctx, Exchange, topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: key,
		Body:          payload,
	})
}

func (r *rabbitBroker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	ch, err := r.conn.Channel()
	if err != nil {
		slog.Error("Failed to open channel", "topic", topic, "err", err)
		return
	}
	defer ch.Close()

	queue := groupID + "." + topic
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		slog.Error("Failed to declare queue", "queue", queue, "err", err)
		return
	}
	if err := ch.QueueBind(queue, topic, Exchange, false, nil); err != nil {
		slog.Error("Failed to bind queue", "queue", queue, "err", err)
		return
	}
	if err := ch.Qos(10, 0, false); err != nil {
		slog.Error("Failed to set qos", "queue", queue, "err", err)
		return
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to consume", "queue", queue, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer shutting down", "topic", topic)
			return
		case d, ok := <-deliveries:
			if !ok {
				slog.Warn("Delivery channel closed", "queue", queue)
				return
			}
			if err := handler(ctx, d.Body); err != nil {
				slog.Error("Error handling message", "queue", queue, "message_id", d.MessageId, "err", err)
			}
			d.Ack(false)
		}
	}
}

func (r *rabbitBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return errors.Join(r.ch.Close(), r.conn.Close())
}
