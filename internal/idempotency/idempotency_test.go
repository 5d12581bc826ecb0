package idempotency

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/checkout", nil)
	assert.Equal(t, "", Key(r))

	r.Header.Set(Header, "  abc-123 ")
	assert.Equal(t, "abc-123", Key(r))
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Lookup(ctx, "alice", "k1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Remember(ctx, "alice", "k1", "order-1"))
	// The first order recorded for a key wins.
	require.NoError(t, s.Remember(ctx, "alice", "k1", "order-2"))

	got, err = s.Lookup(ctx, "alice", "k1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	// Keys are scoped per user.
	got, err = s.Lookup(ctx, "bob", "k1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	testStore(t, s)

	clock := time.Now().Add(2 * time.Hour)
	s.now = func() time.Time { return clock }

	got, err := s.Lookup(context.Background(), "alice", "k1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStore(client, time.Hour)
	testStore(t, s)

	assert.True(t, mr.Exists(redisKeyPrefix+"alice:k1"))

	mr.FastForward(2 * time.Hour)
	got, err := s.Lookup(context.Background(), "alice", "k1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := DialRedis(context.Background(), addr)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = DialRedis(context.Background(), addr)
	require.Error(t, err)
}
