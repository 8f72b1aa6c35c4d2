// Package retry implements an exponential-backoff retry wrapper and the
// Transient/Permanent error taxonomy used to decide whether a failure is
// worth retrying.
package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrTransient marks an error as retryable: network errors, 5xx, 408, 429,
// timeouts.
var ErrTransient = errors.New("retry: transient error")

// ErrPermanent marks an error as not retryable: semantic violations the
// backoff loop must not paper over.
var ErrPermanent = errors.New("retry: permanent error")

// Transient wraps err so errors.Is(wrapped, ErrTransient) succeeds, without
// discarding the original cause.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrTransient)
}

// Permanent wraps err so errors.Is(wrapped, ErrPermanent) succeeds.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrPermanent)
}

// IsTransient reports whether err was marked Transient.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsPermanent reports whether err was marked Permanent.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }

// Policy configures an exponential-backoff retry loop.
type Policy struct {
	Initial    time.Duration
	Factor     float64
	MaxElapsed time.Duration
}

// DefaultPolicy returns the default policy used to wrap process_slot:
// initial=500ms, factor=1.5, max-elapsed=60s.
func DefaultPolicy() Policy {
	return Policy{Initial: 500 * time.Millisecond, Factor: 1.5, MaxElapsed: 60 * time.Second}
}

// nextBackoff computes the next delay given the current one. Growth is
// capped implicitly by the caller's elapsed-time budget rather than a
// max-backoff field, so the cap is cumulative across the whole retry loop
// rather than per step.
func nextBackoff(current time.Duration, p Policy) time.Duration {
	if current == 0 {
		return p.Initial
	}
	return time.Duration(float64(current) * p.Factor)
}

// Do runs fn in a loop until it returns a nil error, an error not marked
// Transient (Permanent or unmarked), the policy's max-elapsed budget is
// exhausted, or ctx is cancelled. onRetry,
// if non-nil, is called before each backoff sleep with the attempt's error
// and the delay about to be slept, so the caller can emit a warn-level
// retry log.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, onRetry func(err error, delay time.Duration)) error {
	start := time.Now()
	var backoff time.Duration

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || !IsTransient(err) {
			return err
		}

		backoff = nextBackoff(backoff, p)
		if time.Since(start)+backoff > p.MaxElapsed {
			return errors.Wrap(err, "retry: max elapsed time exceeded")
		}

		if onRetry != nil {
			onRetry(err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
