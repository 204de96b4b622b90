package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "booking:1", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestMemoryLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewMemoryLocker(50 * time.Millisecond)

	err := l.WithLock(context.Background(), "booking:1", func(ctx context.Context) error {
		return l.WithLock(ctx, "booking:2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestMemoryLocker_TimesOutWhenHeld(t *testing.T) {
	l := NewMemoryLocker(30 * time.Millisecond)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	called := false
	err := l.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	close(done)

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
}

func TestMemoryLocker_ReturnsFnError(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	boom := assert.AnError

	err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// lock was released
	err = l.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.NoError(t, err)
}
