// Package lock provides per-key mutual exclusion for status transitions.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// acquire timeout elapsed.
var ErrLockTimeout = errors.New("lock not acquired before timeout")

// Locker runs fn while holding the lock for key. Calls for the same key are
// serialized; calls for different keys never block each other.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const defaultPollInterval = 20 * time.Millisecond
