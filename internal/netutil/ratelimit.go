// Package netutil collects small helpers shared by every TCP server's
// accept loop: connection-rate limiting grounded in the teacher's
// per-client rate limiter (ws/internal/shared, "CheckLimit" /
// connectionRateLimiter), adapted here to a single process-wide bucket
// since, unlike the teacher's per-IP trading feed, none of these
// protocols distinguish clients by address before they've spoken.
package netutil

import (
	"context"

	"golang.org/x/time/rate"
)

// ConnRateLimiter throttles how quickly an accept loop hands fresh
// connections to handlers, so a connection storm degrades gracefully
// instead of spawning unbounded goroutines.
type ConnRateLimiter struct {
	limiter *rate.Limiter
}

// NewConnRateLimiter builds a limiter allowing perSec accepts/second with
// bursts up to burst.
func NewConnRateLimiter(perSec, burst int) *ConnRateLimiter {
	return &ConnRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Wait blocks until a connection slot is available or ctx is done.
func (c *ConnRateLimiter) Wait(ctx context.Context) error {
	if c == nil || c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
