package http

import (
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type itemResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Platform    string `json:"platform"`
	Developer   string `json:"developer"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Available   bool   `json:"available"`
}

type itemDetailResponse struct {
	Item    itemResponse   `json:"item"`
	Related []itemResponse `json:"related"`
}

func newItemResponse(i entity.Item) itemResponse {
	return itemResponse{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Category:    i.Category,
		Platform:    i.Platform,
		Developer:   i.Developer,
		Price:       i.Price.StringFixed(2),
		Stock:       i.Stock,
		Available:   i.Available(),
	}
}

func newItemResponses(items []entity.Item) []itemResponse {
	resp := make([]itemResponse, 0, len(items))
	for _, i := range items {
		resp = append(resp, newItemResponse(i))
	}
	return resp
}

// facetResponse keeps empty facet lists encoded as [] rather than null.
func facetResponse(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type cartLineResponse struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Available bool   `json:"available"`
}

type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total string             `json:"total"`
}

func newCartResponse(c *service.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResponse{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Title:     l.Item.Title,
			Price:     l.Item.Price.StringFixed(2),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
			Available: l.Item.Available(),
		})
	}
	return cartResponse{Lines: lines, Total: c.Total.StringFixed(2)}
}

type orderLineResponse struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderSummaryResponse struct {
	ID        string             `json:"id"`
	Total     string             `json:"total"`
	Status    entity.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

type orderResponse struct {
	orderSummaryResponse
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes"`
	Lines           []orderLineResponse `json:"lines"`
	Message         string              `json:"message,omitempty"`
}

func newOrderSummary(o entity.Order) orderSummaryResponse {
	return orderSummaryResponse{
		ID:        o.ID,
		Total:     o.Total.StringFixed(2),
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}

func newOrderResponse(o *entity.Order, lines []entity.OrderLineView, message string) orderResponse {
	resp := orderResponse{
		orderSummaryResponse: newOrderSummary(*o),
		ShippingAddress:      o.ShippingAddress,
		Notes:                o.Notes,
		Lines:                make([]orderLineResponse, 0, len(lines)),
		Message:              message,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ItemID:    l.ItemID,
			Title:     l.ItemTitle,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return resp
}

func untitledLines(lines []entity.OrderLine) []entity.OrderLineView {
	views := make([]entity.OrderLineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, entity.OrderLineView{OrderLine: l})
	}
	return views
}
