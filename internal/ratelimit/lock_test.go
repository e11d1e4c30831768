package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGiftLockerWithoutRedisIsLocal(t *testing.T) {
	_, ok := NewGiftLocker(nil).(*LocalGiftLocker)
	assert.True(t, ok)
}

func TestLocalGiftLockerExcludesConcurrentHolders(t *testing.T) {
	locker := NewLocalGiftLocker()
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "42", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "42", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = locker.Acquire(ctx, "43", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	release()
	release()

	_, ok, err = locker.Acquire(ctx, "42", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalGiftLockerSingleWinner(t *testing.T) {
	locker := NewLocalGiftLocker()
	var (
		wins  int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, ok, err := locker.Acquire(context.Background(), "gift", time.Minute)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestLocalGiftLockerRejectsEmptyKey(t *testing.T) {
	_, ok, err := NewLocalGiftLocker().Acquire(context.Background(), " ", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSettlementLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewSettlementLimiter(nil, nil)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	var renewals int32
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(stop, 5*time.Millisecond, func() (bool, error) {
			atomic.AddInt32(&renewals, 1)
			return true, nil
		})
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&renewals) >= 3 }, time.Second, time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop")
	}
}

func TestKeepAliveStopsWhenLockLost(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(make(chan struct{}), time.Millisecond, func() (bool, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return false, errors.New("redis: connection refused")
			}
			return false, nil
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept running after the lock was lost")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
