package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

const (
	// UserHeader carries the caller identity established by the upstream gateway.
	UserHeader  = "X-User-ID"
	AdminHeader = "X-Admin-Token"
)

type Services struct {
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
}

type Options struct {
	AdminToken      string
	CheckoutTimeout time.Duration
}

// Handler handles HTTP requests for the application.
type Handler struct {
	svc     Services
	idem    idempotency.Store
	metrics *metrics.ServerMetrics
	opts    Options
}

func NewHandler(svc Services, idem idempotency.Store, m *metrics.ServerMetrics, opts Options) *Handler {
	if opts.CheckoutTimeout <= 0 {
		opts.CheckoutTimeout = 10 * time.Second
	}
	return &Handler{
		svc:     svc,
		idem:    idem,
		metrics: m,
		opts:    opts,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, "GET /health", "health", h.handleHealth)

	h.handle(mux, "GET /api/items", "list_items", h.handleListItems)
	h.handle(mux, "GET /api/items/{id}", "get_item", h.handleGetItem)
	h.handle(mux, "GET /api/categories", "list_categories", h.handleListCategories)
	h.handle(mux, "GET /api/platforms", "list_platforms", h.handleListPlatforms)

	h.handle(mux, "GET /api/cart", "get_cart", requireUser(h.handleGetCart))
	h.handle(mux, "POST /api/cart/items", "add_to_cart", requireUser(h.handleAddToCart))
	h.handle(mux, "PUT /api/cart/lines/{id}", "update_cart_line", requireUser(h.handleUpdateCartLine))
	h.handle(mux, "DELETE /api/cart/lines/{id}", "remove_cart_line", requireUser(h.handleRemoveCartLine))

	h.handle(mux, "POST /api/checkout", "checkout", requireUser(h.handleCheckout))
	h.handle(mux, "GET /api/orders", "list_orders", requireUser(h.handleListOrders))
	h.handle(mux, "GET /api/orders/{id}", "get_order", requireUser(h.handleGetOrder))

	h.handle(mux, "PUT /api/admin/items/{id}/stock", "admin_update_stock", h.requireAdmin(h.handleUpdateStock))
	h.handle(mux, "PUT /api/admin/items/{id}/price", "admin_update_price", h.requireAdmin(h.handleUpdatePrice))
	h.handle(mux, "PUT /api/admin/items/{id}/active", "admin_set_active", h.requireAdmin(h.handleSetActive))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Catalog ---

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entity.ItemFilter{
		Category: q.Get("category"),
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
	}

	items, err := h.svc.Catalog.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemResponses(items))
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Catalog.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	related, err := h.svc.Catalog.RelatedItems(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemDetailResponse{
		Item:    newItemResponse(*item),
		Related: newItemResponses(related),
	})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facetResponse(categories))
}

func (h *Handler) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.svc.Catalog.Platforms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facetResponse(platforms))
}

// --- Cart ---

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Carts.ListLines(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(cart))
}

type addToCartRequest struct {
	ItemID string `json:"item_id"`
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	line, err := h.svc.Carts.AddItem(r.Context(), userID(r), req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code, message := http.StatusCreated, "Item added to your cart."
	if line.Quantity > 1 {
		code, message = http.StatusOK, "Cart quantity updated."
	}
	writeJSON(w, code, map[string]any{
		"message":  message,
		"line_id":  line.ID,
		"quantity": line.Quantity,
	})
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req updateCartLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Carts.SetQuantity(r.Context(), userID(r), r.PathValue("id"), req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Cart updated."})
}

func (h *Handler) handleRemoveCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Carts.RemoveLine(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item removed from your cart."})
}

// --- Checkout & orders ---

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user := userID(r)
	key := idempotency.Key(r)

	if h.replay(w, r, user, key) {
		return
	}

	// A client disconnect must not abort a checkout that is about to commit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.CheckoutTimeout)
	defer cancel()

	order, err := h.svc.Checkout.Checkout(ctx, user, entity.PlaceOrder{
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		// A concurrent request with the same key may have emptied the cart.
		if errors.Is(err, entity.ErrEmptyCart) && h.replay(w, r, user, key) {
			return
		}
		h.metrics.Checkouts.WithLabelValues(checkoutOutcome(err)).Inc()
		writeError(w, r, err)
		return
	}
	h.metrics.Checkouts.WithLabelValues("placed").Inc()

	if key != "" {
		if err := h.idem.Remember(ctx, user, key, order.ID); err != nil {
			slog.Warn("Failed to remember idempotency key", "order_id", order.ID, "err", err)
		}
	}

	lines, err := h.svc.Orders.GetLines(ctx, order.ID)
	if err != nil {
		slog.Warn("Failed to load placed order lines", "order_id", order.ID, "err", err)
		lines = untitledLines(order.Lines)
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(order, lines, "Order placed successfully!"))
}

// replay writes the order previously placed under key and reports whether it did.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, user, key string) bool {
	if key == "" || user == "" {
		return false
	}
	orderID, err := h.idem.Lookup(r.Context(), user, key)
	if err != nil {
		slog.Warn("Failed to look up idempotency key", "err", err)
		return false
	}
	if orderID == "" {
		return false
	}

	order, err := h.svc.Orders.GetOrder(r.Context(), user, orderID)
	if err != nil {
		writeError(w, r, err)
		return true
	}
	lines, err := h.svc.Orders.GetLines(r.Context(), order.ID)
	if err != nil {
		writeError(w, r, err)
		return true
	}
	h.metrics.Checkouts.WithLabelValues("replayed").Inc()
	writeJSON(w, http.StatusOK, newOrderResponse(order, lines, "Order already placed."))
	return true
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.ListOrders(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderSummaryResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderSummary(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Orders.GetOrder(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.svc.Orders.GetLines(r.Context(), order.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order, lines, ""))
}

// --- Admin ---

type updateStockRequest struct {
	Stock *int `json:"stock"`
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stock == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "stock is required"})
		return
	}

	if err := h.svc.Catalog.UpdateStock(r.Context(), r.PathValue("id"), *req.Stock); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Stock updated."})
}

type updatePriceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "price is required"})
		return
	}

	if err := h.svc.Catalog.UpdatePrice(r.Context(), r.PathValue("id"), *req.Price); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Price updated."})
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "active is required"})
		return
	}

	if err := h.svc.Catalog.SetActive(r.Context(), r.PathValue("id"), *req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item visibility updated."})
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminHeader)
		if h.opts.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) != 1 {
			writeError(w, r, entity.ErrAuthenticationRequired)
			return
		}
		next(w, r)
	}
}

// --- Middleware ---

// requireUser rejects requests without a caller identity before the body is read.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			writeError(w, r, entity.ErrAuthenticationRequired)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// handle registers fn under pattern and records request count and latency as name.
func (h *Handler) handle(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)

		h.metrics.Requests.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()
		h.metrics.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Microseconds()) / 1000)
	})
}

// EnableCORS is a middleware to allow the React frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", UserHeader, AdminHeader, idempotency.Header}, ", "))

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Business errors carry their
// message to the client; faults are logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var code int
	switch {
	case errors.Is(err, entity.ErrAuthenticationRequired):
		code = http.StatusUnauthorized
	case errors.Is(err, entity.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, entity.ErrItemUnavailable), errors.Is(err, entity.ErrInsufficientStock):
		code = http.StatusConflict
	case errors.Is(err, entity.ErrInvalidQuantity), errors.Is(err, entity.ErrInvalidPrice),
		errors.Is(err, entity.ErrEmptyCart), errors.Is(err, entity.ErrMissingAddress),
		errors.Is(err, entity.ErrOrderTooLarge):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrStorageFailure), errors.Is(err, context.DeadlineExceeded):
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable, please retry"})
		return
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, entity.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, entity.ErrEmptyCart):
		return "empty_cart"
	case entity.IsBusinessError(err):
		return "rejected"
	default:
		return "failed"
	}
}
