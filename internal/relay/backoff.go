package relay

import (
	"math/rand/v2"
	"time"
)

const jitter = 250 * time.Millisecond

// backoff doubles the pause after each failed batch up to ceiling.
type backoff struct {
	base, ceiling, current time.Duration
}

func newBackoff(base, ceiling time.Duration) *backoff {
	return &backoff{base: base, ceiling: ceiling, current: base}
}

func (b *backoff) reset() { b.current = b.base }

func (b *backoff) idle() time.Duration {
	b.reset()
	return withJitter(b.base)
}

func (b *backoff) fail() time.Duration {
	b.current = min(b.current*2, b.ceiling)
	return withJitter(b.current)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitter)
}
