package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type outbox struct {
	db querier
}

func (o *outbox) Append(ctx context.Context, topic, key string, event entity.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	_, err = o.db.ExecContext(ctx,
		"INSERT INTO outbox (event_id, event_type, topic, key, payload) VALUES ($1, $2, $3, $4, $5)",
		uuid.NewString(), event.EventType(), topic, key, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.EventType(), err)
	}
	return nil
}

func (o *outbox) FetchPending(ctx context.Context, limit int) ([]entity.OutboxRecord, error) {
	rows, err := o.db.QueryContext(ctx,
		"SELECT id, event_id, event_type, topic, key, payload, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending events: %w", err)
	}
	defer rows.Close()

	var records []entity.OutboxRecord
	for rows.Next() {
		var rec entity.OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return records, nil
}

func (o *outbox) MarkSent(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, "UPDATE outbox SET sent_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d sent: %w", id, err)
	}
	return nil
}
