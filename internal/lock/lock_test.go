package lock_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := lock.NewLocal(5 * time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "user:1")
			require.NoError(t, err)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestLocalTimeout(t *testing.T) {
	l := lock.NewLocal(20 * time.Millisecond)

	unlock, err := l.Lock(context.Background(), "user:1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), "user:1")
	require.ErrorIs(t, err, lock.ErrTimeout)
}

func TestLocalIndependentKeys(t *testing.T) {
	l := lock.NewLocal(20 * time.Millisecond)

	unlockA, err := l.Lock(context.Background(), "user:a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(context.Background(), "user:b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalContextCancel(t *testing.T) {
	l := lock.NewLocal(0)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock() // second call is a no-op

	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func TestRedisLock(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	l := lock.NewRedis(client, 50*time.Millisecond, time.Second, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), key)
	require.ErrorIs(t, err, lock.ErrTimeout)

	unlock()
	again, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	again()
}
