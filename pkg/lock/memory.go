package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker serializes callers inside a single process. Each key gets a
// one-slot channel that is dropped once nobody holds or waits on it.
type MemoryLocker struct {
	mu             sync.Mutex
	slots          map[string]*slot
	acquireTimeout time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates an in-process Locker.
func NewMemoryLocker(acquireTimeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		slots:          make(map[string]*slot),
		acquireTimeout: acquireTimeout,
	}
}

func (l *MemoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	s := l.ref(key)
	defer l.unref(key)

	timer := time.NewTimer(l.acquireTimeout)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *MemoryLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
