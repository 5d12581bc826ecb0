package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// OrderService answers order history and confirmation queries.
type OrderService struct {
	store repository.Store
}

func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{
		store: store,
	}
}

// GetOrder returns the order if it belongs to the user, entity.ErrNotFound otherwise.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*entity.Order, error) {
	if userID == "" {
		return nil, entity.ErrAuthenticationRequired
	}
	order, err := s.store.Repos().Orders.FindByID(ctx, userID, orderID)
	if err != nil {
		return nil, entity.StorageError(err)
	}
	return order, nil
}

// ListOrders returns the user's orders, most recent first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]entity.Order, error) {
	if userID == "" {
		return nil, entity.ErrAuthenticationRequired
	}
	orders, err := s.store.Repos().Orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, entity.StorageError(fmt.Errorf("failed to load orders: %w", err))
	}
	return orders, nil
}

// GetLines returns the lines of an order joined with item titles.
// Callers resolve ownership with GetOrder first.
func (s *OrderService) GetLines(ctx context.Context, orderID string) ([]entity.OrderLineView, error) {
	lines, err := s.store.Repos().Orders.FindLines(ctx, orderID)
	if err != nil {
		return nil, entity.StorageError(fmt.Errorf("failed to load order lines: %w", err))
	}
	return lines, nil
}

// HandleOrderPlaced is triggered by the message broker when an order is placed.
// Fulfillment is owned elsewhere; this consumer only records the notification.
func (s *OrderService) HandleOrderPlaced(ctx context.Context, event *entity.OrderPlaced) error {
	slog.Info("📦 Order placed event received",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"total", event.Total.StringFixed(2),
		"lines", len(event.Lines),
	)
	return nil
}
