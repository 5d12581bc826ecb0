package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type itemRepository struct {
	v view
}

func matchesFilter(i entity.Item, f entity.ItemFilter) bool {
	if !i.Active {
		return false
	}
	if f.Category != "" && i.Category != f.Category {
		return false
	}
	if f.Platform != "" && i.Platform != f.Platform {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		return strings.Contains(strings.ToLower(i.Title), s) ||
			strings.Contains(strings.ToLower(i.Description), s) ||
			strings.Contains(strings.ToLower(i.Developer), s)
	}
	return true
}

func (r *itemRepository) FindAll(ctx context.Context, filter entity.ItemFilter) ([]entity.Item, error) {
	var items []entity.Item
	err := r.v.read(func(d *dataset) error {
		for _, i := range d.items {
			if matchesFilter(i, filter) {
				items = append(items, i)
			}
		}
		return nil
	})
	slices.SortFunc(items, func(a, b entity.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return items, err
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*entity.Item, error) {
	var item entity.Item
	err := r.v.read(func(d *dataset) error {
		i, ok := d.items[id]
		if !ok {
			return fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
		}
		item = i
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	return r.v.write(func(d *dataset) error {
		i, ok := d.items[id]
		if !ok || i.Stock < qty {
			return fmt.Errorf("item %s: %w", id, entity.ErrInsufficientStock)
		}
		i.Stock -= qty
		i.UpdatedAt = r.v.now()
		d.items[id] = i
		return nil
	})
}

func (r *itemRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	return r.modify(id, func(i *entity.Item) { i.Stock = stock })
}

func (r *itemRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	return r.modify(id, func(i *entity.Item) { i.Price = price })
}

func (r *itemRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.modify(id, func(i *entity.Item) { i.Active = active })
}

func (r *itemRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(func(i entity.Item) string { return i.Category })
}

func (r *itemRepository) Platforms(ctx context.Context) ([]string, error) {
	return r.distinct(func(i entity.Item) string { return i.Platform })
}

func (r *itemRepository) distinct(field func(i entity.Item) string) ([]string, error) {
	var values []string
	err := r.v.read(func(d *dataset) error {
		for _, i := range d.items {
			if v := field(i); i.Active && v != "" {
				values = append(values, v)
			}
		}
		return nil
	})
	slices.Sort(values)
	return slices.Compact(values), err
}

func (r *itemRepository) modify(id string, fn func(i *entity.Item)) error {
	return r.v.write(func(d *dataset) error {
		i, ok := d.items[id]
		if !ok {
			return fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
		}
		fn(&i)
		i.UpdatedAt = r.v.now()
		d.items[id] = i
		return nil
	})
}

func (r *itemRepository) Seed(ctx context.Context, items []entity.Item) error {
	return r.v.write(func(d *dataset) error {
		if len(d.items) > 0 {
			return nil
		}
		now := r.v.now()
		for _, i := range items {
			if i.CreatedAt.IsZero() {
				i.CreatedAt = now
			}
			i.UpdatedAt = i.CreatedAt
			d.items[i.ID] = i
		}
		return nil
	})
}
