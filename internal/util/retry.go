package util

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It returns nil on the first success, the unwrapped error of a
// Permanent failure, or the last error once attempts run out. Cancelling ctx
// stops the wait between attempts.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	retries := uint64(max(maxAttempts, 1) - 1)
	b := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)
	return backoff.Retry(func() error {
		err := fn()
		var perm *permanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(perm.err)
		}
		return err
	}, b)
}
