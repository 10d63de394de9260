package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var lockDate = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func TestRedisDateLocker_RunsAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 50*time.Millisecond)

	ran := false
	err := locker.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:reserve:2024-01-10"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:reserve:2024-01-10"))
}

func TestRedisDateLocker_PropagatesError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 50*time.Millisecond)

	boom := errors.New("boom")
	err := locker.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:reserve:2024-01-10"))
}

func TestRedisDateLocker_GivesUpWhenHeld(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 30*time.Millisecond)

	require.NoError(t, mr.Set("lock:reserve:2024-01-10", "someone-else"))

	err := locker.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	val, err := mr.Get("lock:reserve:2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisDateLocker_OtherDatesDoNotContend(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 30*time.Millisecond)

	require.NoError(t, mr.Set("lock:reserve:2024-01-10", "someone-else"))

	err := locker.WithDateLock(context.Background(), lockDate.AddDate(0, 0, 1), func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestRedisDateLocker_SerializesSameDate(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 2*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestRedisDateLocker_RunsUnlockedWhenRedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 50*time.Millisecond)
	mr.Close()

	ran := false
	err := locker.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRedisDateLocker_CancelledContextDoesNotRun(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisDateLocker(client, time.Second, 50*time.Millisecond)
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := locker.WithDateLock(ctx, lockDate, func(ctx context.Context) error {
		t.Fatal("must not run after cancellation")
		return nil
	})
	assert.Error(t, err)
}

func TestNoopLocker(t *testing.T) {
	called := false
	err := NoopLocker{}.WithDateLock(context.Background(), lockDate, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
