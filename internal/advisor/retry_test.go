package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() retryPolicy {
	return retryPolicy{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}
}

func TestWithRetry_TransientErrorRecovers(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), testPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("status code: 429, rate limit reached")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorFailsFast(t *testing.T) {
	calls := 0
	permanent := errors.New("status code: 401, invalid api key")
	err := withRetry(context.Background(), testPolicy(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), testPolicy(), func() error {
		calls++
		return errors.New("service unavailable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Equal(t, 3, calls)
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, testPolicy(), func() error {
		return errors.New("connection reset by peer")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("Too Many Requests")))
	assert.True(t, isTransient(errors.New("dial tcp: i/o timeout")))
	assert.False(t, isTransient(errors.New("unknown intent label")))
	assert.False(t, isTransient(nil))
}
