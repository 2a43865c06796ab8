package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how many times the orchestrator re-runs a job whose
// failure is transient. The fetcher itself never retries.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 mean a single try.
	Attempts int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration

	// MaxBackoff caps the delay.
	MaxBackoff time.Duration

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool
}

// NoRetry runs each job exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{Attempts: 1}
}

// NewRetryPolicy builds a policy from config values.
func NewRetryPolicy(attempts, backoffMs int) RetryPolicy {
	p := RetryPolicy{Attempts: attempts, Backoff: time.Duration(backoffMs) * time.Millisecond}
	return p.withDefaults()
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are spent, or ctx is done.
func Retry[T any](ctx context.Context, p RetryPolicy, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			break
		}

		zap.L().Warn("retrying job",
			zap.String("job", label),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// delay returns the exponential backoff for attempt with ±25% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	d += (rand.Float64()*2 - 1) * d * 0.25
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
