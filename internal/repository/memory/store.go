// Package memory is an in-memory implementation of repository.Store.
//
// Transactions run against a private copy of the dataset while holding the
// store's write lock; the copy replaces the live dataset only when the
// transaction function succeeds. Transactions are therefore serialized.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type dataset struct {
	items      map[string]entity.Item
	cartLines  map[string]entity.CartLine // line id -> line
	orders     map[string]entity.Order
	orderLines map[string][]entity.OrderLine // order id -> lines
	orderSeq   map[string]int64              // insertion order, breaks created_at ties
	outbox     []entity.OutboxRecord
	seq        int64
}

func newDataset() *dataset {
	return &dataset{
		items:      make(map[string]entity.Item),
		cartLines:  make(map[string]entity.CartLine),
		orders:     make(map[string]entity.Order),
		orderLines: make(map[string][]entity.OrderLine),
		orderSeq:   make(map[string]int64),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		items:      maps.Clone(d.items),
		cartLines:  maps.Clone(d.cartLines),
		orders:     maps.Clone(d.orders),
		orderLines: make(map[string][]entity.OrderLine, len(d.orderLines)),
		orderSeq:   maps.Clone(d.orderSeq),
		outbox:     append([]entity.OutboxRecord(nil), d.outbox...),
		seq:        d.seq,
	}
	for id, lines := range d.orderLines {
		c.orderLines[id] = append([]entity.OrderLine(nil), lines...)
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data *dataset
	now  func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: newDataset(),
		now:  time.Now,
	}
}

func (s *Store) Repos() repository.Repositories {
	return s.reposFor(view{store: s})
}

func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.data.clone()
	if err := fn(s.reposFor(view{store: s, tx: tx})); err != nil {
		return err
	}
	s.data = tx
	return nil
}

func (s *Store) reposFor(v view) repository.Repositories {
	return repository.Repositories{
		Items:  &itemRepository{v: v},
		Carts:  &cartRepository{v: v},
		Orders: &orderRepository{v: v},
		Outbox: &outbox{v: v},
	}
}

// view routes repository calls either to a transaction's private dataset
// or, outside a transaction, to the live dataset under the store lock.
type view struct {
	store *Store
	tx    *dataset
}

func (v view) read(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

func (v view) write(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

func (v view) now() time.Time {
	return v.store.now().UTC()
}
