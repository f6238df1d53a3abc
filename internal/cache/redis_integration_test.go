//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denuncia/backend/internal/cache"
	"denuncia/backend/internal/testutil/containers"
)

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	c := cache.NewRedis(rc.Client, "test:")

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	ttl, err := rc.Client.TTL(ctx, "test:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestRedis_DeletePrefixKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	c := cache.NewRedis(rc.Client, "test:")

	for i := 0; i < 450; i++ {
		require.NoError(t, c.Set(ctx, "complaints:paged:"+time.Duration(i).String(), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "complaints:all", []byte("all"), time.Minute))
	require.NoError(t, rc.Client.Set(ctx, "other:complaints:paged:1", "x", 0).Err())

	require.NoError(t, c.DeletePrefix(ctx, "complaints:paged:"))

	n, err := rc.Client.DBSize(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = c.Get(ctx, "complaints:all")
	assert.NoError(t, err)
}

func TestRedis_Remember(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	c := cache.NewRedis(rc.Client, "")

	calls := 0
	produce := func(context.Context) ([]byte, error) {
		calls++
		return []byte("stats"), nil
	}
	for i := 0; i < 3; i++ {
		got, err := c.Remember(ctx, "dashboard:stats", time.Minute, produce)
		require.NoError(t, err)
		assert.Equal(t, "stats", string(got))
	}
	assert.Equal(t, 1, calls)
}

func TestRedis_UnreachableServerDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	c := cache.NewRedis(rc.Client, "")
	require.NoError(t, rc.Container.Terminate(ctx))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)

	got, err := c.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}
