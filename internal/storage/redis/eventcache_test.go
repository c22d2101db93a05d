package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*EventCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := NewEventCacheWithClient(client)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestEventCache_FirstSighting(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.MarkSeen(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = cache.MarkSeen(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, first, "replayed event must not count as first sighting")
}

func TestEventCache_DistinctEvents(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.MarkSeen(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = cache.MarkSeen(ctx, "evt-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestEventCache_Expiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	first, err := cache.MarkSeen(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Minute)

	first, err = cache.MarkSeen(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first, "expired entry should allow the event through again")
}
