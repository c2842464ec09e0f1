package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const lockName = "housekeeping"

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
	LockKey(name string) string
}

// RedisLock is a SETNX lease. The ttl bounds how long a crashed holder can
// block other replicas.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store lockStore, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{store: store, key: store.LockKey(lockName), ttl: ttl}, nil
}

// Acquire returns the owner token when the lease was taken.
func (l *RedisLock) Acquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return "", false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lease if token still owns it.
func (l *RedisLock) Release(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := l.store.DeleteIfEqual(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
