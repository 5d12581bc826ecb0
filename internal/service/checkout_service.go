package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// CheckoutService turns a user's cart into an order.
type CheckoutService struct {
	store repository.Store
	now   func() time.Time
}

func NewCheckoutService(store repository.Store) *CheckoutService {
	return &CheckoutService{
		store: store,
		now:   time.Now,
	}
}

// Checkout places an order for everything in the user's cart.
//
// Within one transaction it locks the cart lines and their items, re-checks
// every quantity against live stock, records the order with per-line price
// snapshots, decrements stock, empties the cart and appends an OrderPlaced
// event to the outbox. Any failure leaves all stores unchanged.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, cmd entity.PlaceOrder) (*entity.Order, error) {
	if userID == "" {
		return nil, entity.ErrAuthenticationRequired
	}

	slog.Info("Service: Checking out cart", "user_id", userID)

	var order *entity.Order
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		lines, err := repos.Carts.FindLinesForCheckout(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if len(lines) == 0 {
			return entity.ErrEmptyCart
		}

		address := strings.TrimSpace(cmd.ShippingAddress)
		if address == "" {
			return entity.ErrMissingAddress
		}

		for _, l := range lines {
			if l.Quantity > l.Item.Stock {
				return insufficientStock(l)
			}
		}

		total := entity.CartTotal(lines)
		if total.GreaterThan(entity.MaxAmount) {
			return fmt.Errorf("total %s: %w", total.StringFixed(2), entity.ErrOrderTooLarge)
		}

		now := s.now().UTC()
		o := &entity.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			Total:           total,
			Status:          entity.OrderStatusPending,
			ShippingAddress: address,
			Notes:           strings.TrimSpace(cmd.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repos.Orders.Create(ctx, o); err != nil {
			return err
		}

		for _, l := range lines {
			line := entity.OrderLine{
				OrderID:   o.ID,
				ItemID:    l.ItemID,
				Quantity:  l.Quantity,
				UnitPrice: l.Item.Price,
			}
			if err := repos.Orders.AddLine(ctx, line); err != nil {
				return err
			}

			if err := repos.Items.DecrementStock(ctx, l.ItemID, l.Quantity); err != nil {
				if errors.Is(err, entity.ErrInsufficientStock) {
					return insufficientStock(l)
				}
				return err
			}
			o.Lines = append(o.Lines, line)
		}

		if err := repos.Carts.Clear(ctx, userID); err != nil {
			return err
		}

		event := entity.OrderPlaced{
			OrderID:  o.ID,
			UserID:   o.UserID,
			Lines:    o.Lines,
			Total:    o.Total,
			PlacedAt: now,
		}
		if err := repos.Outbox.Append(ctx, entity.TopicOrderPlaced, o.ID, event); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		err = entity.StorageError(err)
		if entity.IsBusinessError(err) {
			slog.Info("Checkout rejected", "user_id", userID, "reason", err)
		} else {
			slog.Error("Checkout failed", "user_id", userID, "err", err)
		}
		return nil, err
	}

	slog.Info("Order placed", "order_id", order.ID, "user_id", userID, "total", order.Total.StringFixed(2), "lines", len(order.Lines))
	return order, nil
}

func insufficientStock(l entity.CartLineView) error {
	return &entity.InsufficientStockError{
		ItemID:    l.ItemID,
		Title:     l.Item.Title,
		Requested: l.Quantity,
		Available: l.Item.Stock,
	}
}
