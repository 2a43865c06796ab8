package resilience

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetry_SuccessFirstTry(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), "job", func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), "job", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transport(ReasonDisconnected, io.EOF)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonTransientStops(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), "job", func(_ context.Context) (int, error) {
		calls++
		return 0, Format(ReasonMalformed, errors.New("bad"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_Exhausts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), "job", func(_ context.Context) (int, error) {
		calls++
		return 0, Transport(ReasonTimeout, errors.New("slow"))
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
}

func TestRetry_NoRetryPolicy(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), NoRetry(), "job", func(_ context.Context) (int, error) {
		calls++
		return 0, Transport(ReasonDisconnected, io.EOF)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, RetryPolicy{Attempts: 5, Backoff: time.Hour}, "job", func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, Transport(ReasonDisconnected, io.EOF)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	p := NewRetryPolicy(0, 0)
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, 500*time.Millisecond, p.Backoff)
	assert.Equal(t, 30*time.Second, p.MaxBackoff)

	for i := range 10 {
		d := p.delay(i)
		assert.LessOrEqual(t, d, time.Duration(float64(30*time.Second)*1.25))
	}
}
