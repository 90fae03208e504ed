package workflow

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often one step is re-run within a single instance attempt.
type RetryPolicy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffType
	JitterFactor    float64 // 0.0-1.0
}

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"       // same delay each time
	BackoffLinear      BackoffType = "linear"      // delay increases linearly
	BackoffExponential BackoffType = "exponential" // delay doubles each time
)

// DefaultRetryPolicy is applied to every step unless the engine is given another.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.25,
	}
}

// NoRetryPolicy never retries.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

// CalculateDelay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.BackoffStrategy {
	case BackoffFixed:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = p.InitialDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// ShouldRetry reports whether another attempt is allowed after err.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return !IsFatal(err)
}

// ExecuteWithResult runs fn until it succeeds, returns a fatal error, or the
// policy is exhausted. attempts is the number of calls made.
func ExecuteWithResult[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) (T, error)) (result T, attempts int, err error) {
	var zero T

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, attempts, ctx.Err()
		default:
		}

		attempts++
		r, callErr := fn(ctx, attempt)
		if callErr == nil {
			return r, attempts, nil
		}
		err = callErr

		if !policy.ShouldRetry(attempt, callErr) {
			return zero, attempts, err
		}

		delay := policy.CalculateDelay(attempt + 1)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, attempts, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
