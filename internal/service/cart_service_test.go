package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

func TestCartAddItem(t *testing.T) {
	ctx := context.Background()
	retired := testItem("retired", "5.00", 10)
	retired.Active = false
	store := newTestStore(t,
		testItem("x", "10.00", 2),
		testItem("sold-out", "10.00", 0),
		retired,
	)
	carts := NewCartService(store)

	line, err := carts.AddItem(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	again, err := carts.AddItem(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Equal(t, line.ID, again.ID)
	assert.Equal(t, 2, again.Quantity)

	// A third unit would exceed stock.
	_, err = carts.AddItem(ctx, "alice", "x")
	var stockErr *entity.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)

	cart, err := carts.ListLines(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	tests := []struct {
		name   string
		userID string
		itemID string
		want   error
	}{
		{"sold out", "alice", "sold-out", entity.ErrItemUnavailable},
		{"inactive", "alice", "retired", entity.ErrItemUnavailable},
		{"unknown item", "alice", "missing", entity.ErrNotFound},
		{"anonymous", "", "x", entity.ErrAuthenticationRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := carts.AddItem(ctx, tt.userID, tt.itemID)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCartSetQuantity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, testItem("x", "10.00", 5))
	carts := NewCartService(store)

	line, err := carts.AddItem(ctx, "alice", "x")
	require.NoError(t, err)

	require.NoError(t, carts.SetQuantity(ctx, "alice", line.ID, 5))

	cart, err := carts.ListLines(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.Equal(t, "50.00", cart.Total.StringFixed(2))

	tests := []struct {
		name   string
		userID string
		qty    int
		want   error
	}{
		{"zero", "alice", 0, entity.ErrInvalidQuantity},
		{"negative", "alice", -1, entity.ErrInvalidQuantity},
		{"above stock", "alice", 6, entity.ErrInvalidQuantity},
		{"other user's line", "bob", 1, entity.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := carts.SetQuantity(ctx, tt.userID, line.ID, tt.qty)
			require.ErrorIs(t, err, tt.want)
		})
	}

	cart, err = carts.ListLines(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
}

func TestCartRemoveLine(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, testItem("x", "10.00", 5), testItem("y", "2.50", 5))
	carts := NewCartService(store)

	lx, err := carts.AddItem(ctx, "alice", "x")
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, "alice", "y")
	require.NoError(t, err)

	require.ErrorIs(t, carts.RemoveLine(ctx, "bob", lx.ID), entity.ErrNotFound)
	require.NoError(t, carts.RemoveLine(ctx, "alice", lx.ID))
	require.ErrorIs(t, carts.RemoveLine(ctx, "alice", lx.ID), entity.ErrNotFound)

	cart, err := carts.ListLines(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "y", cart.Lines[0].ItemID)
	assert.Equal(t, "2.50", cart.Total.StringFixed(2))
}

func TestCartListLinesEmpty(t *testing.T) {
	carts := NewCartService(newTestStore(t))

	cart, err := carts.ListLines(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.True(t, cart.Total.IsZero())

	_, err = carts.ListLines(context.Background(), "")
	require.ErrorIs(t, err, entity.ErrAuthenticationRequired)
}

func TestConcurrentAddItemKeepsEveryIncrement(t *testing.T) {
	tests := []struct {
		name   string
		stock  int
		clicks int
	}{
		{"below stock", 10, 6},
		{"exactly stock", 8, 8},
		{"past stock", 5, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t, testItem("hot", "9.99", tt.stock))
			carts := NewCartService(store)

			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				added        int
				insufficient int
				other        []error
			)
			for range tt.clicks {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := carts.AddItem(ctx, "alice", "hot")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						added++
					case errors.Is(err, entity.ErrInsufficientStock):
						insufficient++
					default:
						other = append(other, err)
					}
				}()
			}
			wg.Wait()

			require.Empty(t, other)
			want := min(tt.clicks, tt.stock)
			assert.Equal(t, want, added)
			assert.Equal(t, tt.clicks-want, insufficient)

			cart, err := carts.ListLines(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, cart.Lines, 1)
			assert.Equal(t, want, cart.Lines[0].Quantity)
		})
	}
}
