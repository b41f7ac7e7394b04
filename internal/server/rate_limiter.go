// Package server implements a token bucket rate limiter for per-connection
// throttling that protects the hub from abuse.
package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket sized for one connection: the bucket starts
// full at capacity tokens and refills continuously at capacity tokens per
// refill interval. Each inbound event spends one token; events arriving with
// an empty bucket are discarded by the caller.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	refilled time.Time
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	perSec := float64(capacity) / interval.Seconds()
	if perSec <= 0 {
		perSec = float64(capacity)
	}

	return &rateLimiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		perSec:   perSec,
		refilled: time.Now(),
	}
}

// allow spends one token, reporting whether the event may proceed.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.refilled).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.perSec
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
	rl.refilled = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
