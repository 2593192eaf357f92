// Package resilience provides the in-process primitives that protect the
// upstream market-data provider: a token-bucket rate limiter and per-group
// circuit breakers.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter pacing outbound calls. Tokens refill
// continuously in proportion to elapsed time, so the long-run average call
// rate stays at or below the configured rate while bursts up to capacity
// pass without waiting.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter refilling at ratePerSec with the given
// burst capacity. The bucket starts full.
func NewRateLimiter(ratePerSec float64, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:     ratePerSec,
		capacity: float64(burst),
		tokens:   float64(burst),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Acquire consumes one token, blocking until one refills when the bucket is
// empty. It returns early with the context error on cancellation.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait := rl.take()
		if wait <= 0 {
			return nil
		}
		if err := rl.sleep(ctx, wait); err != nil {
			return fmt.Errorf("resilience: rate limit acquire: %w", err)
		}
	}
}

// take refills the bucket for the elapsed time and either consumes a token
// (returning 0) or returns how long until one token will be available.
func (rl *RateLimiter) take() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if !rl.last.IsZero() {
		rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
	rl.last = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}

	deficit := 1 - rl.tokens
	return time.Duration(deficit / rl.rate * float64(time.Second))
}

// sleepCtx sleeps for d, honouring context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
