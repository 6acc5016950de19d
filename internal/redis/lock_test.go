package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "lock:slot:a:b:2025-04-10:13:20", lockKey("a:b:2025-04-10:13:20"))
}

func TestNoopLocker_RunsFn(t *testing.T) {
	called := false
	err := NoopLocker{}.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestNoopLocker_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NoopLocker{}.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRedisSlotLocker_UnreachableRunsUnlocked(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisSlotLocker(client, time.Second, zerolog.Nop())

	called := false
	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRedisSlotLocker_CancelledContextDoesNotRun(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewRedisSlotLocker(client, time.Second, zerolog.Nop()).WithSlotLock(ctx, "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRedisSlotLocker_HeldSlotIsRefused(t *testing.T) {
	client := testRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second, zerolog.Nop())
	ctx := context.Background()
	slot := "svc:clin:2025-04-10:13:20:" + uuid.NewString()

	err := locker.WithSlotLock(ctx, slot, func(ctx context.Context) error {
		held, err := client.Get(ctx, lockKey(slot)).Result()
		require.NoError(t, err)
		assert.NotEmpty(t, held)

		ttl, err := client.TTL(ctx, lockKey(slot)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		inner := locker.WithSlotLock(ctx, slot, func(context.Context) error {
			t.Error("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)

	n, err := client.Exists(ctx, lockKey(slot)).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "lock is released after fn returns")
}

func TestRedisSlotLocker_ReleasedOnError(t *testing.T) {
	client := testRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second, zerolog.Nop())
	ctx := context.Background()
	slot := "svc:clin:2025-04-10:13:40:" + uuid.NewString()

	boom := errors.New("boom")
	err := locker.WithSlotLock(ctx, slot, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = locker.WithSlotLock(ctx, slot, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisSlotLocker_KeepsForeignToken(t *testing.T) {
	client := testRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second, zerolog.Nop())
	ctx := context.Background()
	slot := "svc:clin:2025-04-11:14:00:" + uuid.NewString()

	// our lock expires mid-write and another replica takes the slot
	err := locker.WithSlotLock(ctx, slot, func(ctx context.Context) error {
		return client.Set(ctx, lockKey(slot), "other-replica", 5*time.Second).Err()
	})
	require.NoError(t, err)

	held, err := client.Get(ctx, lockKey(slot)).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-replica", held)
}
