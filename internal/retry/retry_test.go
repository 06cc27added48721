package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDelay(max int) Config {
	return Config{MaxAttempts: max}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.MaxAttempts)
	assert.Equal(t, time.Second, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.True(t, config.Jitter)
	assert.False(t, config.Unlimited())
}

func TestNextDelay(t *testing.T) {
	config := Config{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, config.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, config.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, config.NextDelay(3))
	assert.Equal(t, time.Second, config.NextDelay(10))

	t.Run("jitter stays within ten percent", func(t *testing.T) {
		config.Jitter = true
		for i := 0; i < 20; i++ {
			d := config.NextDelay(1)
			assert.GreaterOrEqual(t, d, 100*time.Millisecond)
			assert.LessOrEqual(t, d, 110*time.Millisecond)
		}
	})

	t.Run("zero initial delay", func(t *testing.T) {
		assert.Zero(t, Config{BackoffFactor: 2}.NextDelay(5))
	})
}

func TestRetrier_Do(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := New(noDelay(5)).Do(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			assert.Equal(t, calls, attempt)
			if attempt < 3 {
				return errors.New("temporary")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := New(noDelay(4)).Do(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			return boom
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		unauthorized := errors.New("401 unauthorized")
		err := New(noDelay(0)).Do(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			return Permanent(unauthorized)
		})

		require.Error(t, err)
		assert.True(t, IsPermanent(err))
		assert.ErrorIs(t, err, unauthorized)
		assert.Equal(t, 1, calls)
	})

	t.Run("unlimited keeps going until success", func(t *testing.T) {
		calls := 0
		err := New(noDelay(0)).Do(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			if attempt < 50 {
				return errors.New("again")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 50, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := New(noDelay(0)).Do(ctx, func(ctx context.Context, attempt int) error {
			calls++
			if attempt == 2 {
				cancel()
			}
			return errors.New("failing")
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, calls)
	})

	t.Run("uses backoff delays", func(t *testing.T) {
		var delays []time.Duration
		r := New(Config{MaxAttempts: 4, InitialDelay: time.Millisecond, BackoffFactor: 3})
		r.sleep = func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}

		_ = r.Do(context.Background(), func(ctx context.Context, attempt int) error {
			return errors.New("nope")
		})

		assert.Equal(t, []time.Duration{time.Millisecond, 3 * time.Millisecond, 9 * time.Millisecond}, delays)
	})
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("plain")))
}
