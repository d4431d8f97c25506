package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/cache"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{
		Addr:        mr.Addr(),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := New(client, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, mr
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)

	assert.False(t, c.Available(), "unavailable before the first ping")
	_, res, err := c.Get(ctx, "project:1")
	assert.Equal(t, cache.Unavailable, res)
	assert.ErrorIs(t, err, cache.ErrUnavailable)

	require.True(t, c.Ping(ctx))

	_, res, err = c.Get(ctx, "project:1")
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, res)

	require.NoError(t, c.Set(ctx, "project:1", []byte(`{"id":"1"}`), cache.ProjectDetailTTL))
	val, res, err := c.Get(ctx, "project:1")
	require.NoError(t, err)
	assert.Equal(t, cache.Hit, res)
	assert.JSONEq(t, `{"id":"1"}`, string(val))
	assert.Equal(t, cache.ProjectDetailTTL, mr.TTL("project:1"))

	mr.FastForward(cache.ProjectDetailTTL + time.Second)
	_, res, _ = c.Get(ctx, "project:1")
	assert.Equal(t, cache.Miss, res, "entry must expire with its TTL")
}

func TestCacheKeysAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)
	require.True(t, c.Ping(ctx))

	for _, k := range []string{"projects:user:a", "projects:user:b", "project:x"} {
		require.NoError(t, mr.Set(k, "v"))
	}

	keys, err := c.Keys(ctx, "projects:user:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"projects:user:a", "projects:user:b"}, keys)

	require.NoError(t, c.Delete(ctx, keys...))
	assert.False(t, mr.Exists("projects:user:a"))
	assert.True(t, mr.Exists("project:x"))

	assert.NoError(t, c.Delete(ctx), "empty delete is a no-op")
}

func TestCacheMarksDownOnFailureAndRecovers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)
	require.True(t, c.Ping(ctx))

	mr.SetError("LOADING server is loading")
	_, res, err := c.Get(ctx, "project:1")
	assert.Equal(t, cache.Unavailable, res)
	assert.Error(t, err)
	assert.False(t, c.Available())

	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), time.Minute), cache.ErrUnavailable)

	mr.SetError("")
	assert.True(t, c.Ping(ctx))
	assert.True(t, c.Available())
}

func TestInvalidationReachesServerMarkedDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)
	require.True(t, c.Ping(ctx))

	require.NoError(t, c.Set(ctx, "project:p1", []byte(`{"stale":true}`), cache.ProjectDetailTTL))
	require.NoError(t, mr.Set("projects:user:u1", "[]"))

	mr.SetError("LOADING server is loading")
	_, res, _ := c.Get(ctx, "project:p1")
	require.Equal(t, cache.Unavailable, res)
	require.False(t, c.Available())

	// The server recovers before the next health check runs.
	mr.SetError("")
	cache.NewInvalidator(c, nil).Invalidate(ctx,
		cache.Key("project:p1"), cache.AllUserProjectsPattern)

	assert.False(t, mr.Exists("project:p1"))
	assert.False(t, mr.Exists("projects:user:u1"))
	assert.True(t, c.Available(), "a successful delete marks the server up")

	_, res, err := c.Get(ctx, "project:p1")
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, res, "reads after the mutation must not see the old entry")
}

func TestDeleteFailsFastWhenServerIsGone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)
	mr.Close()

	assert.Error(t, c.Delete(ctx, "project:p1"))
	_, err := c.Keys(ctx, "projects:user:*")
	assert.Error(t, err)
	assert.False(t, c.Available())
}

func TestCacheStartStopsWithContext(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	assert.True(t, c.Available())
	cancel()
}

func TestCacheInvalidatorIntegration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)
	require.True(t, c.Ping(ctx))

	require.NoError(t, mr.Set("projects:user:a", "[]"))
	require.NoError(t, mr.Set("project:p", "{}"))

	inv := cache.NewInvalidator(c, nil)
	inv.Invalidate(ctx, cache.Key("project:p"), cache.AllUserProjectsPattern)

	assert.False(t, mr.Exists("project:p"))
	assert.False(t, mr.Exists("projects:user:a"))
}
