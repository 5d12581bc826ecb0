package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPlaced = "orders.placed"
)

// Event represents a domain event.
type Event interface {
	EventType() string
}

// OutboxRecord is an event stored in the outbox table awaiting publication.
type OutboxRecord struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	Topic     string     `json:"topic"`
	Key       string     `json:"key"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// OrderPlaced is emitted when a checkout commits.
type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Lines    []OrderLine     `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }
