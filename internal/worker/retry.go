package worker

import (
	"math"
	"time"
)

const defaultMaxRetries = 3

// RetryPolicy controls how failed outbox tasks are rescheduled.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Exhausted reports whether a task that has now failed attempt times should be dead-lettered.
func (r RetryPolicy) Exhausted(attempt int) bool {
	limit := r.MaxRetries
	if limit <= 0 {
		limit = defaultMaxRetries
	}
	return attempt >= limit
}

// NextDelay grows exponentially with attempt (1-based) and is clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = base
	}
	return d
}

// NextRetryAt is when a task failing for the attempt-th time becomes due again.
func (r RetryPolicy) NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt))
}
