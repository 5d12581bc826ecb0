package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type orderRepository struct {
	v view
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	return r.v.write(func(d *dataset) error {
		if _, exists := d.orders[o.ID]; exists {
			return fmt.Errorf("order %s already exists", o.ID)
		}
		stored := *o
		stored.Lines = nil
		d.orders[o.ID] = stored
		d.seq++
		d.orderSeq[o.ID] = d.seq
		return nil
	})
}

func (r *orderRepository) AddLine(ctx context.Context, l entity.OrderLine) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.orders[l.OrderID]; !ok {
			return fmt.Errorf("order %s does not exist", l.OrderID)
		}
		for _, existing := range d.orderLines[l.OrderID] {
			if existing.ItemID == l.ItemID {
				return fmt.Errorf("order %s already has a line for item %s", l.OrderID, l.ItemID)
			}
		}
		d.orderLines[l.OrderID] = append(d.orderLines[l.OrderID], l)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, userID, orderID string) (*entity.Order, error) {
	var order entity.Order
	err := r.v.read(func(d *dataset) error {
		o, ok := d.orders[orderID]
		if !ok || o.UserID != userID {
			return fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	var (
		orders []entity.Order
		seq    = map[string]int64{}
	)
	err := r.v.read(func(d *dataset) error {
		for id, o := range d.orders {
			if o.UserID == userID {
				orders = append(orders, o)
				seq[id] = d.orderSeq[id]
			}
		}
		return nil
	})
	slices.SortFunc(orders, func(a, b entity.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(seq[b.ID], seq[a.ID])
	})
	return orders, err
}

func (r *orderRepository) FindLines(ctx context.Context, orderID string) ([]entity.OrderLineView, error) {
	var lines []entity.OrderLineView
	err := r.v.read(func(d *dataset) error {
		for _, l := range d.orderLines[orderID] {
			lines = append(lines, entity.OrderLineView{OrderLine: l, ItemTitle: d.items[l.ItemID].Title})
		}
		return nil
	})
	slices.SortFunc(lines, func(a, b entity.OrderLineView) int {
		if c := strings.Compare(a.ItemTitle, b.ItemTitle); c != 0 {
			return c
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return lines, err
}

type outbox struct {
	v view
}

func (o *outbox) Append(ctx context.Context, topic, key string, event entity.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return o.v.write(func(d *dataset) error {
		d.seq++
		d.outbox = append(d.outbox, entity.OutboxRecord{
			ID:        d.seq,
			EventID:   uuid.NewString(),
			EventType: event.EventType(),
			Topic:     topic,
			Key:       key,
			Payload:   payload,
			CreatedAt: o.v.now(),
		})
		return nil
	})
}

func (o *outbox) FetchPending(ctx context.Context, limit int) ([]entity.OutboxRecord, error) {
	var records []entity.OutboxRecord
	err := o.v.read(func(d *dataset) error {
		for _, rec := range d.outbox {
			if len(records) == limit {
				break
			}
			if rec.SentAt == nil {
				records = append(records, rec)
			}
		}
		return nil
	})
	return records, err
}

func (o *outbox) MarkSent(ctx context.Context, id int64) error {
	return o.v.write(func(d *dataset) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id {
				now := o.v.now()
				d.outbox[i].SentAt = &now
				return nil
			}
		}
		return fmt.Errorf("outbox record %d: %w", id, entity.ErrNotFound)
	})
}
