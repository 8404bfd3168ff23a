package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterStoreFixedWindow(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, reset, err := store.Incr(ctx, "login:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Equal(t, now.Add(time.Minute), reset)
	}

	n, _, _ := store.Incr(ctx, "login:5.6.7.8", time.Minute)
	assert.Equal(t, int64(1), n, "keys are independent")

	now = now.Add(time.Minute)
	n, reset, _ := store.Incr(ctx, "login:1.2.3.4", time.Minute)
	assert.Equal(t, int64(1), n, "window resets once it ends")
	assert.Equal(t, now.Add(time.Minute), reset)
}

func TestMemoryCounterStoreSweep(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_, _, _ = store.Incr(context.Background(), "a", time.Second)
	_, _, _ = store.Incr(context.Background(), "b", time.Hour)

	now = now.Add(2 * time.Second)
	store.Sweep()

	assert.NotContains(t, store.windows, "a")
	assert.Contains(t, store.windows, "b")
}

func TestRedisCounterStoreSurfacesErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	_, _, err := NewRedisCounterStore(client).Incr(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
