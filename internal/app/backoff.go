package app

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff configuration values for replay passes.
const (
	DefaultBackoffInitial = 2 * time.Second
	DefaultBackoffMax     = 2 * time.Minute
)

// Backoff implements exponential backoff with jitter. It paces repeated
// replay passes while queue items keep failing.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a Backoff with the given initial and max durations.
// Non-positive values fall back to the defaults.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Wait sleeps for the current backoff duration (±20% jitter) and doubles it
// for next time, capped at max. Returns early with the context's error if
// the context is cancelled.
func (b *Backoff) Wait(ctx context.Context) error {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	sleep := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleep):
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *Backoff) Current() time.Duration {
	return b.current
}
