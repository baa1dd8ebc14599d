package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
			Labels: map[string]string{
				"test":      "lootledger-infrastructure",
				"test-name": t.Name(),
			},
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedis(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 9}, sortedUnique([]int64{9, 3, 1, 3, 9}))
	assert.Empty(t, sortedUnique(nil))
}

func TestRedisUserLocker_SerializesSameUser(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisUserLocker(client, 5*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, 42)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisUserLocker_MultipleUsers(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisUserLocker(client, time.Second)
	ctx := context.Background()

	release, err := locker.Lock(ctx, 2, 1)
	require.NoError(t, err)

	exists, err := client.Exists(ctx, "lootledger:user-lock:1", "lootledger:user-lock:2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), exists)

	release()

	exists, err = client.Exists(ctx, "lootledger:user-lock:1", "lootledger:user-lock:2").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisUserLocker_HonoursContext(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisUserLocker(client, 5*time.Second)

	release, err := locker.Lock(context.Background(), 7)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, 7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisUserLocker_ReleaseOnlyOwnToken(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisUserLocker(client, 5*time.Second)
	ctx := context.Background()

	release, err := locker.Lock(ctx, 5)
	require.NoError(t, err)

	// Simulate the lock expiring and another holder taking it
	require.NoError(t, client.Set(ctx, "lootledger:user-lock:5", "someone-else", time.Minute).Err())
	release()

	value, err := client.Get(ctx, "lootledger:user-lock:5").Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestNoopUserLocker(t *testing.T) {
	release, err := NoopUserLocker{}.Lock(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NotPanics(t, release)
}
