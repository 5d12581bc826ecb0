package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

var itemColumnNames = []string{"id", "title", "description", "category", "platform", "developer", "price", "stock", "active", "created_at", "updated_at"}

var cartViewColumns = []string{
	"id", "user_id", "item_id", "quantity", "created_at", "updated_at",
	"id", "title", "description", "category", "platform", "developer", "price", "stock", "active", "created_at", "updated_at",
}

func TestDecrementStock(t *testing.T) {
	db, mock := newMock(t)
	items := NewStore(db).Repos().Items

	mock.ExpectExec(q("UPDATE items SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1")).
		WithArgs(2, "game-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, items.DecrementStock(context.Background(), "game-1", 2))

	mock.ExpectExec(q("UPDATE items SET stock = stock - $1")).
		WithArgs(3, "game-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := items.DecrementStock(context.Background(), "game-1", 3)
	require.ErrorIs(t, err, entity.ErrInsufficientStock)
}

func TestFindAllBuildsFilter(t *testing.T) {
	db, mock := newMock(t)
	items := NewStore(db).Repos().Items
	now := time.Now()

	mock.ExpectQuery(q("FROM items WHERE active AND category = $1 AND platform = $2 AND (title ILIKE $3 OR description ILIKE $3 OR developer ILIKE $3) ORDER BY created_at DESC, id")).
		WithArgs("RPG", "PC", "%gate%").
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("game-3", "Baldur's Gate 3", "", "RPG", "PC", "Larian", "59.99", 30, true, now, now))

	got, err := items.FindAll(context.Background(), entity.ItemFilter{Category: "RPG", Platform: "PC", Search: " gate "})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "59.99", got[0].Price.StringFixed(2))
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("FROM items WHERE id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := NewStore(db).Repos().Items.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestInsertLineConflict(t *testing.T) {
	db, mock := newMock(t)
	carts := NewStore(db).Repos().Carts

	mock.ExpectQuery(q("ON CONFLICT (user_id, item_id) DO NOTHING")).
		WithArgs("line-1", "alice", "game-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

	created, err := carts.InsertLine(context.Background(), &entity.CartLine{ID: "line-1", UserID: "alice", ItemID: "game-1", Quantity: 1})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestIncrementLineAtLimit(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("WHERE user_id = $1 AND item_id = $2 AND quantity + 1 <= $3")).
		WithArgs("alice", "game-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at", "updated_at"}))

	_, err := NewStore(db).Repos().Carts.IncrementLine(context.Background(), "alice", "game-1", 2)
	require.ErrorIs(t, err, entity.ErrInsufficientStock)
}

func TestAddItemIncrementsExistingLineWithinStock(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM items WHERE id = $1")).
		WithArgs("game-1").
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("game-1", "Elden Ring", "", "RPG", "PS5", "FromSoftware", "59.99", 3, true, now, now))
	mock.ExpectQuery(q("ON CONFLICT (user_id, item_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "alice", "game-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery(q("SET quantity = quantity + 1, updated_at = NOW() WHERE user_id = $1 AND item_id = $2 AND quantity + 1 <= $3")).
		WithArgs("alice", "game-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at", "updated_at"}).
			AddRow("line-1", 2, now, now))
	mock.ExpectCommit()

	line, err := service.NewCartService(NewStore(db)).AddItem(context.Background(), "alice", "game-1")
	require.NoError(t, err)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, 2, line.Quantity)
}

func TestAddItemAtStockLimitRollsBack(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM items WHERE id = $1")).
		WithArgs("game-1").
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("game-1", "Elden Ring", "", "RPG", "PS5", "FromSoftware", "59.99", 2, true, now, now))
	mock.ExpectQuery(q("ON CONFLICT (user_id, item_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery(q("quantity + 1 <= $3")).
		WithArgs("alice", "game-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, err := service.NewCartService(NewStore(db)).AddItem(context.Background(), "alice", "game-1")
	var stockErr *entity.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
}

func TestFacetsAndSetActive(t *testing.T) {
	db, mock := newMock(t)
	items := NewStore(db).Repos().Items

	mock.ExpectQuery(q("SELECT DISTINCT category FROM items WHERE active AND category <> '' ORDER BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Action").AddRow("RPG"))
	categories, err := items.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Action", "RPG"}, categories)

	mock.ExpectQuery(q("SELECT DISTINCT platform FROM items")).
		WillReturnRows(sqlmock.NewRows([]string{"platform"}).AddRow("PC"))
	platforms, err := items.Platforms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PC"}, platforms)

	mock.ExpectExec(q("UPDATE items SET active = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(false, "game-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, items.SetActive(context.Background(), "game-1", false))

	mock.ExpectExec(q("UPDATE items SET active = $1")).
		WithArgs(true, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, items.SetActive(context.Background(), "missing", true), entity.ErrNotFound)
}

func TestSeedSkipsConcurrentInserts(t *testing.T) {
	db, mock := newMock(t)
	price := decimal.RequireFromString

	mock.ExpectQuery(q("SELECT COUNT(*) FROM items")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(q("INSERT INTO items")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(q("INSERT INTO items")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewStore(db).Repos().Items.Seed(context.Background(), []entity.Item{
		{ID: "game-1", Title: "One", Price: price("1.00"), Stock: 1, Active: true},
		{ID: "game-2", Title: "Two", Price: price("2.00"), Stock: 2, Active: true},
	})
	require.NoError(t, err)
}

func TestWithinTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("DELETE FROM cart_lines WHERE user_id = $1")).
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := NewStore(db).WithinTx(context.Background(), func(repos repository.Repositories) error {
			return repos.Carts.Clear(context.Background(), "alice")
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("DELETE FROM cart_lines")).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()

		err := NewStore(db).WithinTx(context.Background(), func(repos repository.Repositories) error {
			return repos.Carts.Clear(context.Background(), "alice")
		})
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
	})
}

func expectCheckoutLines(mock sqlmock.Sqlmock, qty, stock int) {
	now := time.Now()
	mock.ExpectQuery(q("ORDER BY c.item_id FOR UPDATE OF c, i")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cartViewColumns).AddRow(
			"line-1", "alice", "game-1", qty, now, now,
			"game-1", "Elden Ring", "", "RPG", "PS5", "FromSoftware", "59.99", stock, true, now, now,
		))
}

func TestCheckoutCommitsInOneTransaction(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectCheckoutLines(mock, 2, 5)
	mock.ExpectExec(q("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_lines")).
		WithArgs(sqlmock.AnyArg(), "game-1", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE items SET stock = stock - $1")).
		WithArgs(2, "game-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM cart_lines WHERE user_id = $1")).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO outbox")).
		WithArgs(sqlmock.AnyArg(), "OrderPlaced", entity.TopicOrderPlaced, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	order, err := service.NewCheckoutService(NewStore(db)).Checkout(context.Background(), "alice", entity.PlaceOrder{ShippingAddress: "Main St 1"})
	require.NoError(t, err)
	assert.Equal(t, "119.98", order.Total.StringFixed(2))
}

func TestCheckoutRollsBackWhenStockRaceIsLost(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectCheckoutLines(mock, 2, 2)
	mock.ExpectExec(q("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_lines")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE items SET stock = stock - $1")).
		WithArgs(2, "game-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := service.NewCheckoutService(NewStore(db)).Checkout(context.Background(), "alice", entity.PlaceOrder{ShippingAddress: "Main St 1"})
	var stockErr *entity.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "game-1", stockErr.ItemID)
}

func TestCheckoutStorageFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	expectCheckoutLines(mock, 1, 5)
	mock.ExpectExec(q("INSERT INTO orders")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := service.NewCheckoutService(NewStore(db)).Checkout(context.Background(), "alice", entity.PlaceOrder{ShippingAddress: "Main St 1"})
	require.ErrorIs(t, err, entity.ErrStorageFailure)
}

func TestSQLState(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		unique    bool
		retryable bool
	}{
		{"lib/pq unique", &pq.Error{Code: "23505"}, true, false},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, true, false},
		{"lib/pq serialization", fmt.Errorf("wrapped: %w", &pq.Error{Code: "40001"}), false, true},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, false, true},
		{"plain", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, isUniqueViolation(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
