package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

const relatedItemsLimit = 4

// CatalogService exposes catalog browsing and administrative item edits.
type CatalogService struct {
	store repository.Store
}

func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{
		store: store,
	}
}

// ListItems returns the active items matching filter.
func (s *CatalogService) ListItems(ctx context.Context, filter entity.ItemFilter) ([]entity.Item, error) {
	items, err := s.store.Repos().Items.FindAll(ctx, filter)
	if err != nil {
		return nil, entity.StorageError(err)
	}
	return items, nil
}

// GetItem returns an active item. Inactive items are reported as not found.
func (s *CatalogService) GetItem(ctx context.Context, id string) (*entity.Item, error) {
	item, err := s.store.Repos().Items.FindByID(ctx, id)
	if err != nil {
		return nil, entity.StorageError(err)
	}
	if !item.Active {
		return nil, fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	return item, nil
}

// RelatedItems returns up to four other active items in the same category.
func (s *CatalogService) RelatedItems(ctx context.Context, item *entity.Item) ([]entity.Item, error) {
	items, err := s.store.Repos().Items.FindAll(ctx, entity.ItemFilter{Category: item.Category})
	if err != nil {
		return nil, entity.StorageError(err)
	}

	related := make([]entity.Item, 0, relatedItemsLimit)
	for _, i := range items {
		if i.ID == item.ID {
			continue
		}
		related = append(related, i)
		if len(related) == relatedItemsLimit {
			break
		}
	}
	return related, nil
}

// Categories lists the categories of active items for the catalog filter.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	values, err := s.store.Repos().Items.Categories(ctx)
	if err != nil {
		return nil, entity.StorageError(err)
	}
	return values, nil
}

// Platforms lists the platforms of active items for the catalog filter.
func (s *CatalogService) Platforms(ctx context.Context) ([]string, error) {
	values, err := s.store.Repos().Items.Platforms(ctx)
	if err != nil {
		return nil, entity.StorageError(err)
	}
	return values, nil
}

// UpdateStock is an administrative stock correction.
func (s *CatalogService) UpdateStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return fmt.Errorf("stock %d: %w", stock, entity.ErrInvalidQuantity)
	}
	if err := s.store.Repos().Items.UpdateStock(ctx, id, stock); err != nil {
		return entity.StorageError(err)
	}
	slog.Info("Item stock updated", "item_id", id, "stock", stock)
	return nil
}

// UpdatePrice is an administrative price change. Existing order lines keep their snapshot.
func (s *CatalogService) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	if price.IsNegative() || price.GreaterThan(entity.MaxAmount) || !price.Equal(price.Round(2)) {
		return fmt.Errorf("price %s: %w", price, entity.ErrInvalidPrice)
	}
	if err := s.store.Repos().Items.UpdatePrice(ctx, id, price); err != nil {
		return entity.StorageError(err)
	}
	slog.Info("Item price updated", "item_id", id, "price", price.StringFixed(2))
	return nil
}

// SetActive shows or hides an item in the catalog. Cart lines for a hidden
// item stay in place and block checkout until removed.
func (s *CatalogService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.store.Repos().Items.SetActive(ctx, id, active); err != nil {
		return entity.StorageError(err)
	}
	slog.Info("Item visibility updated", "item_id", id, "active", active)
	return nil
}

// Seed inserts the default catalog when the store is empty.
func (s *CatalogService) Seed(ctx context.Context) error {
	if err := s.store.Repos().Items.Seed(ctx, defaultCatalog()); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	slog.Info("Catalog seeded", "count", len(defaultCatalog()))
	return nil
}
