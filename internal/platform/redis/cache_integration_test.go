//go:build integration

package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/config"
)

func TestCacheAgainstRealRedis(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := NewClient(config.RedisConfig{
		Addr:              fmt.Sprintf("%s:%s", host, port.Port()),
		DialTimeoutMillis: 1000,
	})
	c := New(client, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = c.Close() })

	require.True(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "projects:user:1", []byte("[]"), cache.UserProjectsTTL))
	require.NoError(t, c.Set(ctx, "projects:user:2", []byte("[]"), cache.UserProjectsTTL))

	cache.NewInvalidator(c, nil).Invalidate(ctx, cache.AllUserProjectsPattern)

	keys, err := c.Keys(ctx, "projects:user:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, container.Stop(ctx, nil))
	assert.False(t, c.Ping(ctx))
	_, res, _ := c.Get(ctx, "projects:user:1")
	assert.Equal(t, cache.Unavailable, res)
}
