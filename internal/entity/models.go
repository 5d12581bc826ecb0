package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest price or order total that fits NUMERIC(10,2).
var MaxAmount = decimal.RequireFromString("99999999.99")

// Item represents a purchasable catalog item.
type Item struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Platform    string          `json:"platform"`
	Developer   string          `json:"developer"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Available reports whether the item can be added to a cart.
func (i Item) Available() bool {
	return i.Active && i.Stock > 0
}

// ItemFilter narrows a catalog listing. Empty fields are ignored.
type ItemFilter struct {
	Category string
	Platform string
	Search   string // matched against title, description and developer
}

// CartLine is one (user, item) entry pending purchase.
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLineView is a cart line joined with the live item it refers to.
type CartLineView struct {
	CartLine
	Item Item `json:"item"`
}

// Subtotal is quantity times the current item price.
func (v CartLineView) Subtotal() decimal.Decimal {
	return v.Item.Price.Mul(decimal.NewFromInt(int64(v.Quantity)))
}

// CartTotal sums the subtotals of the given lines.
func CartTotal(lines []CartLineView) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order represents a customer order. Orders are only created by checkout.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes,omitempty"`
	Lines           []OrderLine     `json:"lines,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine is an immutable line of an order. UnitPrice is the item price at purchase time.
type OrderLine struct {
	OrderID   string          `json:"order_id"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity times the captured unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderLineView is an order line joined with the item title for display.
type OrderLineView struct {
	OrderLine
	ItemTitle string `json:"item_title"`
}

// OrderLinesTotal sums the subtotals of the given order lines.
func OrderLinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// --- Commands ---

// PlaceOrder is a command to check out the caller's cart.
type PlaceOrder struct {
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}
