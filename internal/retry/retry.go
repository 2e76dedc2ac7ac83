package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// MaxRetries excludes the initial attempt. Zero means a single attempt.
	MaxRetries uint64
	// InitialInterval is the first delay; with Constant it is every delay.
	InitialInterval time.Duration
	// MaxInterval caps exponential growth. Ignored when Constant is set.
	MaxInterval time.Duration
	// Constant switches from exponential to fixed delays.
	Constant bool
}

// Exponential returns a policy of attempts-1 retries with growing delays.
func Exponential(attempts int, initial, max time.Duration) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return Policy{MaxRetries: uint64(attempts - 1), InitialInterval: initial, MaxInterval: max}
}

// Fixed returns a policy of n retries separated by the same delay.
func Fixed(n uint64, delay time.Duration) Policy {
	return Policy{MaxRetries: n, InitialInterval: delay, Constant: true}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Constant {
		b = backoff.NewConstantBackOff(p.InitialInterval)
	} else {
		eb := backoff.NewExponentialBackOff()
		if p.InitialInterval > 0 {
			eb.InitialInterval = p.InitialInterval
		}
		if p.MaxInterval > 0 {
			eb.MaxInterval = p.MaxInterval
		}
		// attempts are bounded by MaxRetries, not wall clock
		eb.MaxElapsedTime = 0
		b = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Do runs op until it succeeds, shouldRetry rejects its error, the policy is
// exhausted or ctx ends. The last operation error is returned unwrapped.
func Do(ctx context.Context, p Policy, name string, op func() error, shouldRetry func(error) bool) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("op", name).Int("attempt", attempt).Dur("wait", wait).Msg("retrying")
	}
	return backoff.RetryNotify(wrapped, p.backOff(ctx), notify)
}
