package integration

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	// Shared Redis container for all tests in the package
	sharedRedis     testcontainers.Container
	sharedRedisMu   sync.Mutex
	sharedRedisAddr string
)

// NewSharedTestRedis returns a client on the package's Redis container,
// starting it on first use. The database is flushed so every test starts empty.
func NewSharedTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedRedisMu.Lock()
	defer sharedRedisMu.Unlock()

	ctx := context.Background()

	if sharedRedis == nil {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor: wait.ForLog("Ready to accept connections").
					WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		require.NoError(t, err, "Failed to start shared Redis container")

		host, err := container.Host(ctx)
		require.NoError(t, err, "Failed to get Redis host")
		port, err := container.MappedPort(ctx, "6379/tcp")
		require.NoError(t, err, "Failed to get Redis port")

		sharedRedis = container
		sharedRedisAddr = net.JoinHostPort(host, port.Port())
	}

	client := redis.NewClient(&redis.Options{Addr: sharedRedisAddr})
	require.NoError(t, client.FlushDB(ctx).Err(), "Failed to flush Redis")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// CleanupSharedRedis terminates the shared Redis container
func CleanupSharedRedis() {
	sharedRedisMu.Lock()
	defer sharedRedisMu.Unlock()

	if sharedRedis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedRedis.Terminate(ctx)
		sharedRedis = nil
		sharedRedisAddr = ""
	}
}
