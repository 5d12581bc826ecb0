package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
)

func testItem(id, price string, stock int) entity.Item {
	return entity.Item{
		ID:       id,
		Title:    strings.ToUpper(id),
		Category: "Action",
		Platform: "PC",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Active:   true,
	}
}

func newTestStore(t *testing.T, items ...entity.Item) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.Repos().Items.Seed(context.Background(), items))
	return s
}

func addItem(t *testing.T, carts *CartService, userID, itemID string, times int) {
	t.Helper()
	for range times {
		_, err := carts.AddItem(context.Background(), userID, itemID)
		require.NoError(t, err)
	}
}

type storeSnapshot struct {
	Items  []entity.Item
	Carts  map[string][]entity.CartLineView
	Orders map[string][]entity.Order
	Outbox []entity.OutboxRecord
}

// snapshot captures everything observable in the store for the given users.
func snapshot(t *testing.T, s repository.Store, users ...string) storeSnapshot {
	t.Helper()
	ctx := context.Background()
	repos := s.Repos()

	snap := storeSnapshot{
		Carts:  map[string][]entity.CartLineView{},
		Orders: map[string][]entity.Order{},
	}
	var err error
	snap.Items, err = repos.Items.FindAll(ctx, entity.ItemFilter{})
	require.NoError(t, err)
	for _, u := range users {
		snap.Carts[u], err = repos.Carts.FindLines(ctx, u)
		require.NoError(t, err)
		snap.Orders[u], err = repos.Orders.FindByUser(ctx, u)
		require.NoError(t, err)
	}
	snap.Outbox, err = repos.Outbox.FetchPending(ctx, 1000)
	require.NoError(t, err)
	return snap
}

// faultyStore injects a storage error when stock of failItemID is decremented in a transaction.
type faultyStore struct {
	*memory.Store
	failItemID string
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return f.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		repos.Items = faultyItems{ItemRepository: repos.Items, failItemID: f.failItemID}
		return fn(repos)
	})
}

type faultyItems struct {
	repository.ItemRepository
	failItemID string
}

func (f faultyItems) DecrementStock(ctx context.Context, id string, qty int) error {
	if id == f.failItemID {
		return errors.New("connection reset by peer")
	}
	return f.ItemRepository.DecrementStock(ctx, id, qty)
}
