// ABOUTME: Fixed per-operation rate limiting for the message boundary
// ABOUTME: Over-limit calls are rejected immediately, never queued
package boundary

import (
	"sync"

	"golang.org/x/time/rate"
)

type opLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perOp    rate.Limit
	burst    int
}

func newOpLimiter(perOp float64, burst int) *opLimiter {
	return &opLimiter{
		limiters: make(map[string]*rate.Limiter),
		perOp:    rate.Limit(perOp),
		burst:    burst,
	}
}

// Allow reports whether one more call of op fits the budget right now.
func (l *opLimiter) Allow(op string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[op]
	if !ok {
		lim = rate.NewLimiter(l.perOp, l.burst)
		l.limiters[op] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
