package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := NewFromClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestSeededIncrStartsFromSeed(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	key := client.OrderRefCounterKey(2026)

	got, err := client.SeededIncr(ctx, key, 41, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)

	srv.FastForward(10 * time.Minute)
	got, err = client.SeededIncr(ctx, key, 5, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 43, got, "seed only applies to a new key")
	assert.Equal(t, 50*time.Minute, srv.TTL(key), "ttl is set once on creation")

	other := client.OrderRefCounterKey(2027)
	_, err = client.SeededIncr(ctx, other, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, srv.TTL(other), "zero ttl leaves the key persistent")
}

func TestSessionBindingLifecycle(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	key := client.SessionBasketKey("sess-1")
	require.NoError(t, client.Set(ctx, key, "basket-1", time.Hour))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "basket-1", got)

	srv.FastForward(30 * time.Minute)
	require.NoError(t, client.Touch(ctx, key, time.Hour))
	assert.Equal(t, time.Hour, srv.TTL(key))

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNil)
}

func TestDeleteIfEqual(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	key := client.LockKey("job")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := client.DeleteIfEqual(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, srv.Exists(key))

	deleted, err = client.DeleteIfEqual(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, srv.Exists(key))
}

func TestKeyLayout(t *testing.T) {
	var k Keys
	cases := map[string]string{
		k.SessionBasketKey("abc"):       "storefront:session:abc:basket",
		k.SessionBasketKey(""):          "storefront:session:basket",
		k.IdempotencyKey("scope", "id"): "storefront:idempotency:scope:id",
		k.OrderRefCounterKey(2026):      "storefront:counter:order_ref:2026",
		k.LockKey(" housekeeping "):     "storefront:lock:housekeeping",
	}
	for got, want := range cases {
		assert.Equal(t, want, got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}
