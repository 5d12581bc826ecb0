package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

const orderColumns = "id, user_id, total, status, shipping_address, notes, created_at, updated_at"

type orderRepository struct {
	db querier
}

func scanOrder(row rowScanner, o *entity.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		o.ID, o.UserID, o.Total, o.Status, o.ShippingAddress, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) AddLine(ctx context.Context, l entity.OrderLine) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO order_lines (order_id, item_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
		l.OrderID, l.ItemID, l.Quantity, l.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order line: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, userID, orderID string) (*entity.Order, error) {
	var o entity.Order
	err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2", orderID, userID), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		var o entity.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) FindLines(ctx context.Context, orderID string) ([]entity.OrderLineView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.order_id, l.item_id, l.quantity, l.unit_price, i.title
		FROM order_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.order_id = $1
		ORDER BY i.title, l.item_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []entity.OrderLineView
	for rows.Next() {
		var l entity.OrderLineView
		if err := rows.Scan(&l.OrderID, &l.ItemID, &l.Quantity, &l.UnitPrice, &l.ItemTitle); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order line rows: %w", err)
	}
	return lines, nil
}
