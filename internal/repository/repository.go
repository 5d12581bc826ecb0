package repository

import (
	"context"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/shopspring/decimal"
)

// ItemRepository handles persistence for catalog Items.
type ItemRepository interface {
	FindAll(ctx context.Context, filter entity.ItemFilter) ([]entity.Item, error)
	// FindByID returns entity.ErrNotFound when the item does not exist.
	FindByID(ctx context.Context, id string) (*entity.Item, error)
	// DecrementStock subtracts qty from the item's stock. It returns
	// entity.ErrInsufficientStock and changes nothing when stock < qty.
	DecrementStock(ctx context.Context, id string, qty int) error
	UpdateStock(ctx context.Context, id string, stock int) error
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error
	SetActive(ctx context.Context, id string, active bool) error
	// Categories and Platforms list the distinct values among active items, sorted.
	Categories(ctx context.Context) ([]string, error)
	Platforms(ctx context.Context) ([]string, error)
	// Seed inserts initial items if none exist.
	Seed(ctx context.Context, items []entity.Item) error
}

// CartRepository handles persistence for cart lines.
type CartRepository interface {
	FindLines(ctx context.Context, userID string) ([]entity.CartLineView, error)
	// FindLinesForCheckout returns the same rows as FindLines but locks the
	// cart lines and their items until the surrounding transaction ends.
	FindLinesForCheckout(ctx context.Context, userID string) ([]entity.CartLineView, error)
	// FindLine returns entity.ErrNotFound unless the line exists and belongs to userID.
	FindLine(ctx context.Context, userID, lineID string) (*entity.CartLine, error)
	// InsertLine creates line unless one already exists for (user, item).
	// It reports whether the line was created.
	InsertLine(ctx context.Context, line *entity.CartLine) (bool, error)
	// IncrementLine adds one unit to the (user, item) line if the result does
	// not exceed limit, otherwise it returns entity.ErrInsufficientStock.
	IncrementLine(ctx context.Context, userID, itemID string, limit int) (*entity.CartLine, error)
	SetQuantity(ctx context.Context, userID, lineID string, qty int) error
	// DeleteLine is idempotent.
	DeleteLine(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
}

// OrderRepository handles persistence for Orders and their lines.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	AddLine(ctx context.Context, line entity.OrderLine) error
	// FindByID returns entity.ErrNotFound unless the order exists and belongs to userID.
	FindByID(ctx context.Context, userID, orderID string) (*entity.Order, error)
	// FindByUser returns the user's orders, most recent first.
	FindByUser(ctx context.Context, userID string) ([]entity.Order, error)
	FindLines(ctx context.Context, orderID string) ([]entity.OrderLineView, error)
}

// Outbox stores events in the same transaction as the state change that produced them.
type Outbox interface {
	Append(ctx context.Context, topic, key string, event entity.Event) error
	FetchPending(ctx context.Context, limit int) ([]entity.OutboxRecord, error)
	MarkSent(ctx context.Context, id int64) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Items  ItemRepository
	Carts  CartRepository
	Orders OrderRepository
	Outbox Outbox
}

// Store gives access to repositories, either directly or inside a transaction.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn against repositories bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
