package housekeeping

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// OutboxRetention prunes relayed outbox rows past the retention window.
type OutboxRetention struct {
	tx        txRunner
	repo      publishedPruner
	retention time.Duration
	batchSize int
}

func NewOutboxRetention(tx txRunner, repo publishedPruner, retention time.Duration, batchSize int) (*OutboxRetention, error) {
	if tx == nil {
		return nil, errors.New("tx runner required")
	}
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	return &OutboxRetention{tx: tx, repo: repo, retention: retention, batchSize: batchSize}, nil
}

func (t *OutboxRetention) Name() string { return "outbox-retention" }

func (t *OutboxRetention) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-t.retention)
	return drain(ctx, t.batchSize, func() (int64, error) {
		var n int64
		err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = t.repo.DeletePublishedBefore(tx, cutoff, t.batchSize)
			return err
		})
		return n, err
	})
}
