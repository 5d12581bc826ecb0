package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type cartRepository struct {
	v view
}

func (r *cartRepository) FindLines(ctx context.Context, userID string) ([]entity.CartLineView, error) {
	lines, err := r.views(userID)
	slices.SortFunc(lines, func(a, b entity.CartLineView) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return lines, err
}

func (r *cartRepository) FindLinesForCheckout(ctx context.Context, userID string) ([]entity.CartLineView, error) {
	lines, err := r.views(userID)
	slices.SortFunc(lines, func(a, b entity.CartLineView) int {
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return lines, err
}

func (r *cartRepository) views(userID string) ([]entity.CartLineView, error) {
	var lines []entity.CartLineView
	err := r.v.read(func(d *dataset) error {
		for _, l := range d.cartLines {
			if l.UserID != userID {
				continue
			}
			item, ok := d.items[l.ItemID]
			if !ok {
				continue
			}
			lines = append(lines, entity.CartLineView{CartLine: l, Item: item})
		}
		return nil
	})
	return lines, err
}

func findUserLine(d *dataset, userID, itemID string) (entity.CartLine, bool) {
	for _, l := range d.cartLines {
		if l.UserID == userID && l.ItemID == itemID {
			return l, true
		}
	}
	return entity.CartLine{}, false
}

func (r *cartRepository) FindLine(ctx context.Context, userID, lineID string) (*entity.CartLine, error) {
	var line entity.CartLine
	err := r.v.read(func(d *dataset) error {
		l, ok := d.cartLines[lineID]
		if !ok || l.UserID != userID {
			return fmt.Errorf("cart line %s: %w", lineID, entity.ErrNotFound)
		}
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) InsertLine(ctx context.Context, line *entity.CartLine) (bool, error) {
	created := false
	err := r.v.write(func(d *dataset) error {
		if _, exists := findUserLine(d, line.UserID, line.ItemID); exists {
			return nil
		}
		now := r.v.now()
		line.CreatedAt, line.UpdatedAt = now, now
		d.cartLines[line.ID] = *line
		created = true
		return nil
	})
	return created, err
}

func (r *cartRepository) IncrementLine(ctx context.Context, userID, itemID string, limit int) (*entity.CartLine, error) {
	var line entity.CartLine
	err := r.v.write(func(d *dataset) error {
		l, ok := findUserLine(d, userID, itemID)
		if !ok || l.Quantity+1 > limit {
			return fmt.Errorf("item %s: %w", itemID, entity.ErrInsufficientStock)
		}
		l.Quantity++
		l.UpdatedAt = r.v.now()
		d.cartLines[l.ID] = l
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, lineID string, qty int) error {
	return r.v.write(func(d *dataset) error {
		l, ok := d.cartLines[lineID]
		if !ok || l.UserID != userID {
			return fmt.Errorf("cart line %s: %w", lineID, entity.ErrNotFound)
		}
		l.Quantity = qty
		l.UpdatedAt = r.v.now()
		d.cartLines[lineID] = l
		return nil
	})
}

func (r *cartRepository) DeleteLine(ctx context.Context, userID, lineID string) error {
	return r.v.write(func(d *dataset) error {
		if l, ok := d.cartLines[lineID]; ok && l.UserID == userID {
			delete(d.cartLines, lineID)
		}
		return nil
	})
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	return r.v.write(func(d *dataset) error {
		for id, l := range d.cartLines {
			if l.UserID == userID {
				delete(d.cartLines, id)
			}
		}
		return nil
	})
}
