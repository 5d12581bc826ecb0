package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// CartService manages per-user shopping carts.
// Adding to a cart does not reserve stock; checkout re-validates it.
type CartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{
		store: store,
	}
}

// Cart is a snapshot of a user's cart lines with their live items.
type Cart struct {
	Lines []entity.CartLineView
	Total decimal.Decimal
}

// AddItem puts one unit of the item in the user's cart. A new line starts at
// quantity 1; an existing line grows by one as long as it stays within stock.
func (s *CartService) AddItem(ctx context.Context, userID, itemID string) (*entity.CartLine, error) {
	if userID == "" {
		return nil, entity.ErrAuthenticationRequired
	}

	slog.Info("Service: Adding item to cart", "user_id", userID, "item_id", itemID)

	var line *entity.CartLine
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		item, err := repos.Items.FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.Available() {
			return fmt.Errorf("%q: %w", item.Title, entity.ErrItemUnavailable)
		}

		l := &entity.CartLine{
			ID:       uuid.NewString(),
			UserID:   userID,
			ItemID:   itemID,
			Quantity: 1,
		}
		created, err := repos.Carts.InsertLine(ctx, l)
		if err != nil {
			return err
		}
		if created {
			line = l
			return nil
		}

		line, err = repos.Carts.IncrementLine(ctx, userID, itemID, item.Stock)
		if errors.Is(err, entity.ErrInsufficientStock) {
			return &entity.InsufficientStockError{ItemID: item.ID, Title: item.Title, Available: item.Stock}
		}
		return err
	})
	if err != nil {
		return nil, entity.StorageError(err)
	}
	return line, nil
}

// SetQuantity overwrites the quantity of one of the user's cart lines.
// qty must be positive and not exceed the item's current stock.
func (s *CartService) SetQuantity(ctx context.Context, userID, lineID string, qty int) error {
	if userID == "" {
		return entity.ErrAuthenticationRequired
	}
	if qty <= 0 {
		return fmt.Errorf("quantity %d: %w", qty, entity.ErrInvalidQuantity)
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		line, err := repos.Carts.FindLine(ctx, userID, lineID)
		if err != nil {
			return err
		}
		item, err := repos.Items.FindByID(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if qty > item.Stock {
			return fmt.Errorf("quantity %d for %q exceeds stock %d: %w", qty, item.Title, item.Stock, entity.ErrInvalidQuantity)
		}
		return repos.Carts.SetQuantity(ctx, userID, lineID, qty)
	})
	return entity.StorageError(err)
}

// RemoveLine deletes one of the user's cart lines. It fails with
// entity.ErrNotFound when the line does not belong to the user.
func (s *CartService) RemoveLine(ctx context.Context, userID, lineID string) error {
	if userID == "" {
		return entity.ErrAuthenticationRequired
	}

	repos := s.store.Repos()
	if _, err := repos.Carts.FindLine(ctx, userID, lineID); err != nil {
		return entity.StorageError(err)
	}
	return entity.StorageError(repos.Carts.DeleteLine(ctx, userID, lineID))
}

// ListLines returns the user's cart with item details and the derived total.
func (s *CartService) ListLines(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, entity.ErrAuthenticationRequired
	}

	lines, err := s.store.Repos().Carts.FindLines(ctx, userID)
	if err != nil {
		return nil, entity.StorageError(fmt.Errorf("failed to load cart: %w", err))
	}
	return &Cart{
		Lines: lines,
		Total: entity.CartTotal(lines),
	}, nil
}
