// Package relay moves committed outbox rows onto the broker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	Park(tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error) error
}

type encoder interface {
	Encode(row models.OutboxEvent) (Message, error)
}

type Params struct {
	Logger      *logger.Logger
	DB          txRunner
	Store       pendingStore
	DeadLetters deadLetters
	Codec       encoder
	Sink        Sink
	Metrics     *metrics.OutboxMetrics

	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

type Relay struct {
	logg    *logger.Logger
	db      txRunner
	store   pendingStore
	dlq     deadLetters
	codec   encoder
	sink    Sink
	metrics *metrics.OutboxMetrics

	batch       int
	maxAttempts int
	poll        time.Duration
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case p.DB == nil:
		return nil, fmt.Errorf("db required")
	case p.Store == nil:
		return nil, fmt.Errorf("outbox store required")
	case p.DeadLetters == nil:
		return nil, fmt.Errorf("dead letter store required")
	case p.Codec == nil:
		return nil, fmt.Errorf("codec required")
	case p.Sink == nil:
		return nil, fmt.Errorf("sink required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		dlq:         p.DeadLetters,
		codec:       p.Codec,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batch:       p.BatchSize,
		maxAttempts: p.MaxAttempts,
		poll:        p.PollInterval,
	}
	if r.batch <= 0 {
		r.batch = 50
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 10
	}
	if r.poll <= 0 {
		r.poll = 500 * time.Millisecond
	}
	return r, nil
}

// Run drains batches until ctx is done. Full batches are followed
// immediately by the next one; empty batches wait one poll interval and
// failing batches back off.
func (r *Relay) Run(ctx context.Context) error {
	wait := newBackoff(r.poll, 10*time.Second)
	for {
		n, err := r.Drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			pause = wait.fail()
		case n == 0:
			pause = wait.idle()
		default:
			wait.reset()
		}

		if pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Drain settles one batch of pending rows in a single transaction and
// reports how many rows it looked at.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var n int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		n = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return n, err
}

// settle delivers one row and records the result. Only storage errors are
// returned; delivery failures are recorded on the row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})
	kind := string(row.EventType)

	msg, err := r.codec.Encode(row)
	if err == nil {
		ctx = r.logg.WithFields(ctx, map[string]any{"topic": msg.Topic, "event_id": msg.EventID})
		err = r.sink.Send(ctx, msg)
	}

	switch {
	case err == nil:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncPublished(kind)
		r.logg.Info(ctx, "outbox event published")
		return nil
	case IsPermanent(err):
		return r.park(ctx, tx, row, enums.DeadLetterNonRetryable, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.park(ctx, tx, row, enums.DeadLetterMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err))
	}

	r.metrics.IncFailed(kind)
	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	if err := r.store.MarkFailedTx(tx, row.ID, err); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return nil
}

func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead lettered")
	if err := r.dlq.Park(tx, row, reason, cause); err != nil {
		return fmt.Errorf("dead letter %s: %w", row.ID, errors.Join(err, cause))
	}
	if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}
