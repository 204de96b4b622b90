package application

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// RetryPolicy bounds RetryOnConflict.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries up to maxRetries times starting at 50ms.
func DefaultRetryPolicy(maxRetries uint64) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      maxRetries,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// RetryOnConflict runs op again with exponential backoff while it fails with
// a lock or version conflict. A stale expected status is returned at once:
// the caller has to re-read before deciding again. Any other error, or
// running out of retries, returns the last error unchanged.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialInterval
	eb.MaxInterval = policy.MaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, policy.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil || (domain.IsConcurrency(err) && !domain.IsStaleStatus(err)) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
