package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrExhausted is returned (wrapped) when every allowed attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Config defines retry behavior for an operation.
// MaxAttempts of 0 means the operation is retried until it succeeds or the context ends.
type Config struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool          `mapstructure:"jitter" yaml:"jitter"`
}

// DefaultConfig returns the retry configuration used when none is given
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   10,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Unlimited reports whether the policy never gives up on its own
func (c Config) Unlimited() bool {
	return c.MaxAttempts <= 0
}

// NextDelay calculates the delay before the attempt following the given one
func (c Config) NextDelay(attempt int) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}

	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := time.Duration(float64(c.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if c.MaxDelay > 0 && (delay > c.MaxDelay || delay < 0) {
		delay = c.MaxDelay
	}

	if c.Jitter {
		delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
	}

	return delay
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent checks if err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier runs operations under a retry policy
type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrier for the given policy
func New(config Config) *Retrier {
	return &Retrier{
		config: config,
		sleep:  sleepContext,
	}
}

// Config returns the policy of the retrier
func (r *Retrier) Config() Config {
	return r.config
}

// Do executes op until it succeeds, returns a permanent error, the context
// is cancelled or the attempts run out. The attempt number starts at 1.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 1; r.config.Unlimited() || attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Ctx(ctx).Debug().
					Int("attempt", attempt).
					Msg("Operation succeeded after retries")
			}
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !r.config.Unlimited() && attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.config.NextDelay(attempt)
		log.Ctx(ctx).Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.config.MaxAttempts).
			Dur("delay", delay).
			Msg("Operation failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, r.config.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
