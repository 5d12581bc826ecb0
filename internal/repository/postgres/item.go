package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

const itemColumns = "id, title, description, category, platform, developer, price, stock, active, created_at, updated_at"

type itemRepository struct {
	db querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, i *entity.Item) error {
	return row.Scan(&i.ID, &i.Title, &i.Description, &i.Category, &i.Platform, &i.Developer,
		&i.Price, &i.Stock, &i.Active, &i.CreatedAt, &i.UpdatedAt)
}

func (r *itemRepository) FindAll(ctx context.Context, filter entity.ItemFilter) ([]entity.Item, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "active")
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		where = append(where, fmt.Sprintf("platform = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR developer ILIKE $%d)", n, n, n))
	}

	query := "SELECT " + itemColumns + " FROM items WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at DESC, id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []entity.Item
	for rows.Next() {
		var i entity.Item
		if err := scanItem(rows, &i); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*entity.Item, error) {
	var i entity.Item
	err := scanItem(r.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id), &i)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item %s: %w", id, err)
	}
	return &i, nil
}

func (r *itemRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE items SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		qty, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update item stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, entity.ErrInsufficientStock)
	}
	return nil
}

func (r *itemRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	return r.update(ctx, "UPDATE items SET stock = $1, updated_at = NOW() WHERE id = $2", stock, id)
}

func (r *itemRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	return r.update(ctx, "UPDATE items SET price = $1, updated_at = NOW() WHERE id = $2", price, id)
}

func (r *itemRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, "UPDATE items SET active = $1, updated_at = NOW() WHERE id = $2", active, id)
}

func (r *itemRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "SELECT DISTINCT category FROM items WHERE active AND category <> '' ORDER BY category")
}

func (r *itemRepository) Platforms(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "SELECT DISTINCT platform FROM items WHERE active AND platform <> '' ORDER BY platform")
}

func (r *itemRepository) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query item facets: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan item facet: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facet rows: %w", err)
	}
	return values, nil
}

func (r *itemRepository) update(ctx context.Context, query string, value any, id string) error {
	res, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (r *itemRepository) Seed(ctx context.Context, items []entity.Item) error {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, i := range items {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO items (id, title, description, category, platform, developer, price, stock, active) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			i.ID, i.Title, i.Description, i.Category, i.Platform, i.Developer, i.Price, i.Stock, i.Active,
		)
		if isUniqueViolation(err) {
			// another replica seeded concurrently
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed item %s: %w", i.ID, err)
		}
	}
	return nil
}
