package basket

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type sessionRedis interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SessionBasketKey(sessionKey string) string
}

// RedisSessionStore keeps session bindings in Redis with a sliding TTL.
type RedisSessionStore struct {
	client sessionRedis
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) BasketID(ctx context.Context, sessionKey string) (uuid.UUID, bool, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return uuid.Nil, false, nil
	}
	key := s.client.SessionBasketKey(sessionKey)
	raw, err := s.client.Get(ctx, key)
	if errors.Is(err, redis.ErrNil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	if s.ttl > 0 {
		if err := s.client.Touch(ctx, key, s.ttl); err != nil {
			return uuid.Nil, false, err
		}
	}
	return id, true, nil
}

func (s *RedisSessionStore) Bind(ctx context.Context, sessionKey string, basketID uuid.UUID) error {
	if strings.TrimSpace(sessionKey) == "" {
		return errors.New("session key required")
	}
	return s.client.Set(ctx, s.client.SessionBasketKey(sessionKey), basketID.String(), s.ttl)
}

func (s *RedisSessionStore) Unbind(ctx context.Context, sessionKey string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return nil
	}
	return s.client.Del(ctx, s.client.SessionBasketKey(sessionKey))
}
