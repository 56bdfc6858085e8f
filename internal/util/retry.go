// ABOUTME: Retry utilities with exponential backoff and jitter
// ABOUTME: Used by the identity manager for transient credential store failures
package util

import (
	"math/rand/v2"
	"time"
)

// maxBackoff bounds a single sleep regardless of attempt count.
const maxBackoff = 10 * time.Second

// CalculateBackoff returns exponential backoff with jitter for the given
// attempt. Attempt 0 (and below) returns 0 so first tries are immediate.
// Jitter is -25% to +25% of the computed delay.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30 // avoid overflow in the shift
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Retry runs fn up to attempts times, sleeping with backoff between tries.
// It returns nil on the first success, or the last error.
func Retry(attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		time.Sleep(CalculateBackoff(baseDelay, i))
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
