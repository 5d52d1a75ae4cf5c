package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(retries int, opts ...Option) *Retrier {
	return New(append([]Option{WithMaxRetries(retries), WithInitialInterval(time.Millisecond)}, opts...)...)
}

func TestRetrier_Do(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		failures     int
		wantAttempts int
		wantErr      bool
	}{
		{name: "success on first attempt", retries: 5, failures: 0, wantAttempts: 1},
		{name: "success after retries", retries: 3, failures: 2, wantAttempts: 3},
		{name: "fail after max retries", retries: 2, failures: 10, wantAttempts: 3, wantErr: true},
		{name: "no retries", retries: 0, failures: 10, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := fastRetrier(tt.retries).Do(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return errors.New("fail")
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetrier_ContextCancellation(t *testing.T) {
	r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := r.Do(ctx, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetrier_DoWithData(t *testing.T) {
	val, err := DoWithData(New(), context.Background(), func(context.Context) (string, error) {
		return "BTC", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "BTC", val)

	val, err = DoWithData(fastRetrier(1), context.Background(), func(context.Context) (string, error) {
		return "", errors.New("fail")
	})
	assert.Error(t, err)
	assert.Empty(t, val)
}

func TestRetrier_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	r := fastRetrier(3, WithRetryIf(func(err error) bool { return !errors.Is(err, permanent) }))

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = r.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("transient")
	})
	assert.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestRetrier_OnRetry(t *testing.T) {
	var seen []int
	r := fastRetrier(2, WithOnRetry(func(attempt int, err error, wait time.Duration) {
		assert.EqualError(t, err, "fail")
		assert.GreaterOrEqual(t, wait, time.Duration(0))
		seen = append(seen, attempt)
	}))

	_ = r.Do(context.Background(), func(context.Context) error { return errors.New("fail") })
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetrier_Backoff(t *testing.T) {
	r := New(WithInitialInterval(100*time.Millisecond), WithMaxInterval(time.Second), WithMultiplier(2))

	assert.Equal(t, time.Duration(0), r.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, r.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.Backoff(2))
	assert.Equal(t, 800*time.Millisecond, r.Backoff(4))
	assert.Equal(t, time.Second, r.Backoff(5), "capped at max interval")
	assert.Equal(t, time.Second, r.Backoff(30))
}
