//go:build integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Allocator {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewAllocator(client, "")
}

func TestAllocator(t *testing.T) {
	a := startRedis(t)
	ctx := context.Background()

	t.Run("empty counter starts at 1", func(t *testing.T) {
		v, err := a.Floor(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, v)

		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("floor raises but never lowers", func(t *testing.T) {
		v, err := a.Floor(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(10), v)

		v, err = a.Floor(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(10), v)

		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(11), id)
	})

	t.Run("concurrent callers get distinct ids", func(t *testing.T) {
		const workers = 50
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[int64]struct{}, workers)
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := a.NextID(ctx)
				assert.NoError(t, err)
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, ids, workers)
	})
}
