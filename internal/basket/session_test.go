package basket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func TestRedisSessionStoreSlidingTTL(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisSessionStore(client, time.Hour)

	if _, ok, err := store.BasketID(ctx, "sess"); err != nil || ok {
		t.Fatalf("expected no binding, got ok=%v err=%v", ok, err)
	}

	basketID := uuid.New()
	if err := store.Bind(ctx, "sess", basketID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	key := client.SessionBasketKey("sess")
	srv.FastForward(30 * time.Minute)

	got, ok, err := store.BasketID(ctx, "sess")
	if err != nil || !ok || got != basketID {
		t.Fatalf("unexpected lookup %v %v %v", got, ok, err)
	}
	if ttl := srv.TTL(key); ttl != time.Hour {
		t.Fatalf("expected ttl refreshed to 1h, got %v", ttl)
	}

	if err := store.Unbind(ctx, "sess"); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if srv.Exists(key) {
		t.Fatal("expected binding removed")
	}
	if err := store.Bind(ctx, " ", basketID); err == nil {
		t.Fatal("expected blank session key to be rejected")
	}
}

func TestRedisSessionStoreIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisSessionStore(client, time.Hour)

	if err := srv.Set(client.SessionBasketKey("sess"), "not-a-uuid"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok, err := store.BasketID(ctx, "sess"); err != nil || ok {
		t.Fatalf("expected garbage binding to be ignored, got ok=%v err=%v", ok, err)
	}
}
