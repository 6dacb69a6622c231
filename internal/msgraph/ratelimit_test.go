package msgraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(), "request %d should be within burst", i)
	}
	assert.False(t, limiter.Allow(), "burst exhausted")
}

func TestRateLimiter_BackoffBlocksAllow(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimit)

	limiter.RecordRateLimitError(60)

	assert.False(t, limiter.Allow())
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimit)
	limiter.RecordRateLimitError(60)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ZeroConfigFallsBackToDefault(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{})

	assert.True(t, limiter.Allow())
}
