package redisclient

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// testRedis returns a client for TEST_REDIS_ADDR or, failing that, a
// redis:7-alpine container shared by the package. Skips when neither is
// available.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis tests skipped in short mode")
	}

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		redisOnce.Do(func() {
			redisAddr, redisErr = startRedis(context.Background())
		})
		if redisErr != nil {
			t.Skipf("redis container unavailable: %v", redisErr)
		}
		addr = redisAddr
	}

	client, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// The container is removed by the testcontainers reaper when the test
// binary exits.
func startRedis(ctx context.Context) (string, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}
	host, err := ctr.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := ctr.MappedPort(ctx, "6379")
	if err != nil {
		return "", err
	}
	return host + ":" + port.Port(), nil
}
