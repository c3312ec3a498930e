package infra

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Backoff spaces out retries after failed sync cycles. Each failure grows
// the delay by a fixed factor up to a cap, with ±20% jitter so multiple
// instances restarting together do not align their retries. The runner
// resets the schedule after the first successful run.
type Backoff struct {
	min    time.Duration
	max    time.Duration
	factor float64

	mu    sync.Mutex
	delay time.Duration
	fails int
}

func NewBackoff(min, max time.Duration, factor float64) *Backoff {
	return &Backoff{min: min, max: max, factor: factor, delay: min}
}

// Next returns the wait before the upcoming retry and advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fails++

	jittered := b.delay + time.Duration((rand.Float64()*0.4-0.2)*float64(b.delay))
	if jittered < b.min {
		jittered = b.min
	}

	b.delay = time.Duration(float64(b.delay) * b.factor)
	if b.delay > b.max {
		b.delay = b.max
	}

	return jittered
}

// Sleep blocks for the next scheduled delay or until ctx is canceled.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset restores the initial delay after a successful run.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = b.min
	b.fails = 0
}

// Failures reports how many times Next was called since the last Reset.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fails
}
