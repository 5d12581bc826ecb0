package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

const cartLineViewQuery = `
	SELECT c.id, c.user_id, c.item_id, c.quantity, c.created_at, c.updated_at,
		i.id, i.title, i.description, i.category, i.platform, i.developer, i.price, i.stock, i.active, i.created_at, i.updated_at
	FROM cart_lines c
	JOIN items i ON i.id = c.item_id
	WHERE c.user_id = $1`

type cartRepository struct {
	db querier
}

func (r *cartRepository) FindLines(ctx context.Context, userID string) ([]entity.CartLineView, error) {
	return r.queryLines(ctx, cartLineViewQuery+" ORDER BY c.created_at DESC, c.id", userID)
}

// FindLinesForCheckout locks rows in item order so that concurrent checkouts
// touching the same items acquire their locks in the same sequence.
func (r *cartRepository) FindLinesForCheckout(ctx context.Context, userID string) ([]entity.CartLineView, error) {
	return r.queryLines(ctx, cartLineViewQuery+" ORDER BY c.item_id FOR UPDATE OF c, i", userID)
}

func (r *cartRepository) queryLines(ctx context.Context, query, userID string) ([]entity.CartLineView, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []entity.CartLineView
	for rows.Next() {
		var v entity.CartLineView
		err := rows.Scan(&v.ID, &v.UserID, &v.ItemID, &v.Quantity, &v.CreatedAt, &v.UpdatedAt,
			&v.Item.ID, &v.Item.Title, &v.Item.Description, &v.Item.Category, &v.Item.Platform, &v.Item.Developer,
			&v.Item.Price, &v.Item.Stock, &v.Item.Active, &v.Item.CreatedAt, &v.Item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart rows: %w", err)
	}
	return lines, nil
}

func (r *cartRepository) FindLine(ctx context.Context, userID, lineID string) (*entity.CartLine, error) {
	var l entity.CartLine
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, item_id, quantity, created_at, updated_at FROM cart_lines WHERE id = $1 AND user_id = $2",
		lineID, userID,
	).Scan(&l.ID, &l.UserID, &l.ItemID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart line %s: %w", lineID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart line: %w", err)
	}
	return &l, nil
}

func (r *cartRepository) InsertLine(ctx context.Context, line *entity.CartLine) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO cart_lines (id, user_id, item_id, quantity) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_id) DO NOTHING
		RETURNING created_at, updated_at`,
		line.ID, line.UserID, line.ItemID, line.Quantity,
	).Scan(&line.CreatedAt, &line.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// ON CONFLICT DO NOTHING: the line already exists.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert cart line: %w", err)
	}
	return true, nil
}

func (r *cartRepository) IncrementLine(ctx context.Context, userID, itemID string, limit int) (*entity.CartLine, error) {
	l := entity.CartLine{UserID: userID, ItemID: itemID}
	err := r.db.QueryRowContext(ctx,
		`UPDATE cart_lines SET quantity = quantity + 1, updated_at = NOW()
		WHERE user_id = $1 AND item_id = $2 AND quantity + 1 <= $3
		RETURNING id, quantity, created_at, updated_at`,
		userID, itemID, limit,
	).Scan(&l.ID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, entity.ErrInsufficientStock)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment cart line: %w", err)
	}
	return &l, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, lineID string, qty int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_lines SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		qty, lineID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cart line %s: %w", lineID, entity.ErrNotFound)
	}
	return nil
}

func (r *cartRepository) DeleteLine(ctx context.Context, userID, lineID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_lines WHERE id = $1 AND user_id = $2", lineID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_lines WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
