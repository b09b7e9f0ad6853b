package ingest

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff yields exponentially growing retry delays with jitter. It is not
// safe for concurrent use.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64 // fraction of the delay, 0-1
	attempt    int
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial:    initial,
		max:        max,
		multiplier: 2,
		jitter:     0.1,
	}
}

// next returns the delay before the next attempt.
func (b *backoff) next() time.Duration {
	delay := float64(b.initial) * math.Pow(b.multiplier, float64(b.attempt))
	if delay > float64(b.max) {
		delay = float64(b.max)
	}
	if b.jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * b.jitter
	}
	if delay < 0 {
		delay = float64(b.initial)
	}
	b.attempt++
	return time.Duration(delay)
}

func (b *backoff) reset() {
	b.attempt = 0
}
