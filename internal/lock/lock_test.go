package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "lock:order:o-1", orderKey("o-1"))
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	first, ok, err := l.Acquire(ctx, "o-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, first)

	_, ok, err = l.Acquire(ctx, "o-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	_, ok, _ = l.Acquire(ctx, "o-2", time.Minute)
	assert.True(t, ok, "locks are per order")

	now = now.Add(2 * time.Minute)
	second, ok, _ := l.Acquire(ctx, "o-1", time.Minute)
	assert.True(t, ok, "expired locks can be taken over")
	assert.NotEqual(t, first, second)

	require.NoError(t, l.Release(ctx, "o-1", first))
	_, ok, _ = l.Acquire(ctx, "o-1", time.Minute)
	assert.False(t, ok, "a stale token must not release the new holder's lock")

	require.NoError(t, l.Release(ctx, "o-1", second))
	require.NoError(t, l.Release(ctx, "o-1", second))
	_, ok, _ = l.Acquire(ctx, "o-1", time.Minute)
	assert.True(t, ok)
}

func TestHold(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, err := Hold(ctx, l, "o-1", time.Minute)
	require.NoError(t, err)

	_, err = Hold(ctx, l, "o-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release2, err := Hold(ctx, l, "o-1", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestHold_ReleasesWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewMemoryLocker()

	release, err := Hold(ctx, l, "o-1", time.Minute)
	require.NoError(t, err)
	cancel()
	release()

	_, ok, err := l.Acquire(context.Background(), "o-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, errors.New("backend down")
}

func (failingLocker) Release(context.Context, string, string) error { return nil }

func TestHold_BackendError(t *testing.T) {
	_, err := Hold(context.Background(), failingLocker{}, "o-1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Contains(t, err.Error(), "backend down")
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client)
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	mr, l := newMiniRedis(t)

	token, ok, err := l.Acquire(ctx, "o-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := mr.Get("lock:order:o-1")
	require.NoError(t, err)
	assert.Equal(t, token, stored)
	assert.Equal(t, time.Minute, mr.TTL("lock:order:o-1"))

	_, ok, err = l.Acquire(ctx, "o-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "o-1", token))
	assert.False(t, mr.Exists("lock:order:o-1"))
}

func TestRedisLocker_ExpiredHolderKeepsOffNewLock(t *testing.T) {
	ctx := context.Background()
	mr, l := newMiniRedis(t)

	stale, ok, err := l.Acquire(ctx, "o-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	current, ok, err := l.Acquire(ctx, "o-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "o-1", stale))
	stored, err := mr.Get("lock:order:o-1")
	require.NoError(t, err)
	assert.Equal(t, current, stored, "the late release must leave the new lock in place")

	require.NoError(t, l.Release(ctx, "o-1", current))
	assert.False(t, mr.Exists("lock:order:o-1"))
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client)
	_, ok, err := l.Acquire(context.Background(), "o-1", time.Minute)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, l.Release(context.Background(), "o-1", "token"))

	_, err = NewRedisClient(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
