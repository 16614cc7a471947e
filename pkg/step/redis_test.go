package step

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestRedisStore(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client, time.Hour)
	ctx := t.Context()

	_, ok, err := store.Load(ctx, "event-1", "create-execution")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "event-1", "create-execution", []byte(`{"id":"exec-1"}`)))
	require.NoError(t, store.Save(ctx, "event-1", "create-execution", []byte(`{"id":"exec-2"}`)))

	result, ok, err := store.Load(ctx, "event-1", "create-execution")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"exec-1"}`, string(result))

	ttl, err := client.TTL(ctx, redisKeyPrefix+"event-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStore_WithRunner(t *testing.T) {
	store := NewRedisStore(setupRedis(t), time.Hour)
	calls := 0

	fn := func(context.Context) (string, error) {
		calls++

		return "ok", nil
	}

	for range 2 {
		result, err := Do(t.Context(), newTestRunner(store), "prepare-workflow", fn)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	}

	assert.Equal(t, 1, calls)
}
