// Package backoff retries an operation a bounded number of times with a
// fixed pause between attempts.
package backoff

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Backoff is a fixed interval retry loop.
type Backoff struct {
	maxAttempt int
	delay      time.Duration
}

type Option func(*Backoff)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(b *Backoff) {
		if n > 0 {
			b.maxAttempt = n
		}
	}
}

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) Option {
	return func(b *Backoff) {
		b.delay = d
	}
}

// New returns a Backoff that tries once, then gives up.
func New(opts ...Option) *Backoff {
	b := &Backoff{
		maxAttempt: 1,
		delay:      time.Second,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Run returns the wrapped error
// unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Run calls runFunc with the attempt number, starting at 1, until it
// succeeds, returns a Permanent error, runs out of attempts or ctx is done.
func (b *Backoff) Run(ctx context.Context, runFunc func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= b.maxAttempt; attempt++ {
		err = runFunc(attempt)
		if err == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return permanent.err
		}

		if attempt == b.maxAttempt {
			break
		}

		timer := time.NewTimer(b.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "retry canceled")
		case <-timer.C:
		}
	}

	return errors.Wrapf(err, "done trying after %d attempts", b.maxAttempt)
}
