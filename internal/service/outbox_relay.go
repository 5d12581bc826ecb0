package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// OutboxRelay publishes events committed to the outbox.
// Delivery is at-least-once: a crash between publish and MarkSent republishes the event.
type OutboxRelay struct {
	store     repository.Store
	publisher messaging.Publisher
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(store repository.Store, publisher messaging.Publisher, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox relay shutting down")
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Failed to flush outbox", "err", err)
			}
		}
	}
}

// Flush publishes one batch of pending events in order and returns how many were sent.
// It stops at the first publish failure so later events are not sent ahead of it.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	outbox := r.store.Repos().Outbox

	records, err := outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		if err := r.publisher.PublishEvent(ctx, rec.Topic, rec.Key, json.RawMessage(rec.Payload)); err != nil {
			return sent, fmt.Errorf("failed to publish %s %s: %w", rec.EventType, rec.EventID, err)
		}
		if err := outbox.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		slog.Debug("Outbox flushed", "sent", sent)
	}
	return sent, nil
}
