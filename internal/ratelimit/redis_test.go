package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tuncerburak97/gozcu/internal/repository/repotest"
)

func TestRedisStore(t *testing.T) {
	endpoint := repotest.StartContainer(t, "redis:7-alpine", "6379/tcp", nil,
		wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
	)
	store := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: endpoint}))
	defer store.Close()
	ctx := context.Background()

	count, _, err := store.Get(ctx, "license.example.com")
	require.NoError(t, err)
	assert.Zero(t, count)

	reset := time.Now().Add(time.Minute)
	for i := 1; i <= 3; i++ {
		n, err := store.Increment(ctx, "license.example.com", reset)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	count, end, err := store.Get(ctx, "license.example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.WithinDuration(t, reset, end, 2*time.Second)

	svc := NewService(3, time.Minute, store)
	res, err := svc.Allow(ctx, "license.example.com")
	require.NoError(t, err)
	assert.True(t, res.Limited)

	require.NoError(t, store.Reset(ctx, "license.example.com"))
	count, _, err = store.Get(ctx, "license.example.com")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.Increment(ctx, "short", time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		n, _, err := store.Get(ctx, "short")
		return err == nil && n == 0
	}, 2*time.Second, 20*time.Millisecond)
}
