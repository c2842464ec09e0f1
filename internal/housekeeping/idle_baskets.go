package housekeeping

import (
	"context"
	"errors"
	"time"
)

type idleBasketDeleter interface {
	DeleteAnonymousIdle(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// IdleBaskets removes anonymous baskets untouched for longer than the session
// ttl. Their session binding has expired, so no caller can resolve them.
type IdleBaskets struct {
	repo      idleBasketDeleter
	idle      time.Duration
	batchSize int
}

func NewIdleBaskets(repo idleBasketDeleter, idle time.Duration, batchSize int) (*IdleBaskets, error) {
	if repo == nil {
		return nil, errors.New("basket repository required")
	}
	if idle <= 0 {
		return nil, errors.New("idle window must be positive")
	}
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	return &IdleBaskets{repo: repo, idle: idle, batchSize: batchSize}, nil
}

func (t *IdleBaskets) Name() string { return "idle-baskets" }

func (t *IdleBaskets) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return drain(ctx, t.batchSize, func() (int64, error) {
		return t.repo.DeleteAnonymousIdle(ctx, now.Add(-t.idle), t.batchSize)
	})
}

// drain repeats batch until it removes fewer than size rows.
func drain(ctx context.Context, size int, batch func() (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := batch()
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(size) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
