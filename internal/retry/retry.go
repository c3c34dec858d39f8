// Package retry implements exponential backoff with jitter for external
// provider calls. Callers supply the classification of retryable errors;
// the policy itself is agnostic of any provider's error taxonomy.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy controls how an operation is retried. The zero value is unusable;
// start from Default and override fields.
type Policy struct {
	// InitialDelay is the pre-jitter delay before the first retry.
	InitialDelay time.Duration
	// Base is the exponent base: delay = InitialDelay * Base^attempt.
	Base float64
	// MaxRetries is the total number of attempts, including the first.
	MaxRetries int
	// Jitter scales each delay by a random factor in [1,2) when set.
	Jitter bool
	// Retryable classifies errors. A nil Retryable retries nothing.
	Retryable func(error) bool

	// sleep is injectable for tests; nil means ctx-aware time.Sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// Default is the policy used for provider calls unless a pipeline overrides
// it.
func Default(retryable func(error) bool) Policy {
	return Policy{
		InitialDelay: time.Second,
		Base:         2,
		MaxRetries:   3,
		Jitter:       true,
		Retryable:    retryable,
	}
}

// WithSleep returns a copy of p using fn to wait between attempts.
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = fn
	return p
}

// Delay returns the pre-jitter delay after the given zero-indexed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.Base, float64(attempt)))
}

// Do runs op up to MaxRetries times. Non-retryable errors return
// immediately; after the final failed attempt the original error is
// returned unchanged so the root cause stays visible to the caller.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if p.Jitter {
			delay = time.Duration(float64(delay) * (1 + rand.Float64()))
		}
		if werr := p.wait(ctx, delay); werr != nil {
			return werr
		}
	}
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
