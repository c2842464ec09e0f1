// Package housekeeping periodically prunes rows nothing can reach anymore.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// Task is one cleanup step. Sweep reports how many rows it removed.
type Task interface {
	Name() string
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type locker interface {
	Acquire(ctx context.Context) (string, bool, error)
	Release(ctx context.Context, token string) error
}

type RunnerParams struct {
	Logger   *logger.Logger
	Lock     locker
	Tasks    []Task
	Metrics  *metrics.HousekeepingMetrics
	Interval time.Duration
}

// Runner sweeps every task on a fixed cadence while holding the lock, so
// only one replica works at a time.
type Runner struct {
	logg     *logger.Logger
	lock     locker
	tasks    []Task
	metrics  *metrics.HousekeepingMetrics
	interval time.Duration
	now      func() time.Time
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	tasks := make([]Task, 0, len(params.Tasks))
	for _, task := range params.Tasks {
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		logg:     params.Logger,
		lock:     params.Lock,
		tasks:    tasks,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logg.Error(ctx, "housekeeping cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.interval):
		}
	}
}

// RunOnce performs a single cycle. Task failures are logged and joined into
// the returned error; later tasks still run.
func (r *Runner) RunOnce(ctx context.Context) error {
	token, ok, err := r.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire housekeeping lock: %w", err)
	}
	if !ok {
		r.logg.Info(ctx, "housekeeping lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), token); err != nil {
			r.logg.Error(ctx, "release housekeeping lock", err)
		}
	}()

	var errs []error
	now := r.now().UTC()
	for _, task := range r.tasks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.sweep(ctx, task, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) sweep(ctx context.Context, task Task, now time.Time) error {
	taskCtx := r.logg.WithField(ctx, "task", task.Name())
	started := time.Now()
	removed, err := task.Sweep(taskCtx, now)
	elapsed := time.Since(started)
	r.metrics.ObserveSweep(task.Name(), elapsed, removed, err)

	taskCtx = r.logg.WithFields(taskCtx, map[string]any{
		"rows_removed": removed,
		"duration_ms":  elapsed.Milliseconds(),
	})
	if err != nil {
		r.logg.Error(taskCtx, "housekeeping sweep failed", err)
		return err
	}
	r.logg.Info(taskCtx, "housekeeping sweep complete")
	return nil
}
