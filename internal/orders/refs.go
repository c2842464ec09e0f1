package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RefGenerator allocates human readable order references.
type RefGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type lastRefFinder interface {
	LastRefForYear(ctx context.Context, year int) (string, bool, error)
}

// SequentialRefGenerator derives "{year}-{00001}" from the latest order of the
// year. Concurrent callers can receive the same ref; the unique index on
// orders.ref rejects the loser.
type SequentialRefGenerator struct {
	repo lastRefFinder
	now  func() time.Time
}

func NewSequentialRefGenerator(repo lastRefFinder) *SequentialRefGenerator {
	return &SequentialRefGenerator{repo: repo, now: time.Now}
}

func (g *SequentialRefGenerator) Generate(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()
	last, err := g.lastIncrement(ctx, year)
	if err != nil {
		return "", err
	}
	return formatRef(year, last+1), nil
}

func (g *SequentialRefGenerator) lastIncrement(ctx context.Context, year int) (int64, error) {
	ref, ok, err := g.repo.LastRefForYear(ctx, year)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return parseRefIncrement(ref), nil
}

type refCounter interface {
	SeededIncr(ctx context.Context, key string, seed int64, ttl time.Duration) (int64, error)
	OrderRefCounterKey(year int) string
}

// counterTTL keeps a year's counter around past the year boundary.
const counterTTL = 400 * 24 * time.Hour

// RedisRefGenerator hands out increments from a per-year Redis counter, seeded
// from the stored orders the first time a year is seen.
type RedisRefGenerator struct {
	counter refCounter
	seed    *SequentialRefGenerator
	now     func() time.Time
}

func NewRedisRefGenerator(counter refCounter, repo lastRefFinder) *RedisRefGenerator {
	return &RedisRefGenerator{counter: counter, seed: NewSequentialRefGenerator(repo), now: time.Now}
}

func (g *RedisRefGenerator) Generate(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()
	seed, err := g.seed.lastIncrement(ctx, year)
	if err != nil {
		return "", err
	}
	n, err := g.counter.SeededIncr(ctx, g.counter.OrderRefCounterKey(year), seed, counterTTL)
	if err != nil {
		return "", err
	}
	return formatRef(year, n), nil
}

func formatRef(year int, n int64) string {
	return fmt.Sprintf("%d-%05d", year, n)
}

func parseRefIncrement(ref string) int64 {
	_, suffix, ok := strings.Cut(ref, "-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
