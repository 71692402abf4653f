package advisor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// retryPolicy bounds how often a transient completion failure is retried.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

// withRetry runs fn, retrying transient failures with exponential backoff
// and jitter. Non-transient errors return immediately.
func withRetry(ctx context.Context, policy retryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < policy.maxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(backoffDelay(attempt, policy)):
			}
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", policy.maxRetries, lastErr)
}

func backoffDelay(attempt int, policy retryPolicy) time.Duration {
	backoff := float64(policy.baseDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(policy.maxDelay) {
		backoff = float64(policy.maxDelay)
	}
	return time.Duration(rand.Float64() * backoff)
}

// isTransient reports whether an error looks like API throttling or a
// network hiccup worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"rate limit",
		"too many requests",
		"status code: 429",
		"status code: 500",
		"status code: 502",
		"status code: 503",
		"service unavailable",
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
