package util

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests against a per-minute quota.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter allows perMinute operations per minute with no burst.
func NewRateLimiter(perMinute int) *RateLimiter {
	return NewBurstLimiter(perMinute, 1)
}

// NewBurstLimiter allows perMinute operations per minute, letting up to
// burst of them through back to back. The bucket starts full. A
// non-positive perMinute disables the limit.
func NewBurstLimiter(perMinute, burst int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &RateLimiter{lim: rate.NewLimiter(limit, max(burst, 1))}
}

// Allow takes a token if one is available without waiting.
func (rl *RateLimiter) Allow() bool { return rl.lim.Allow() }

// Wait blocks until a token is available. It fails early when ctx is done
// or its deadline would pass first.
func (rl *RateLimiter) Wait(ctx context.Context) error { return rl.lim.Wait(ctx) }
