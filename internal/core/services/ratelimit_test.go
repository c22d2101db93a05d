package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1.0, BurstSize: 3})

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "burst exhausted")
}

func TestRateLimiter_BackoffBlocksAllow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})

	assert.True(t, rl.Allow())
	rl.RecordRateLimitError(30)
	assert.False(t, rl.Allow(), "backoff window must block requests")
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})
	rl.RecordRateLimitError(60)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ZeroConfigGetsDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	assert.True(t, rl.Allow())
}
