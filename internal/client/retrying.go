package client

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// RetryingClient retries failed completions according to a retry policy
type RetryingClient struct {
	next    Completer
	retrier *retry.Retrier
	metrics *metrics.Metrics
}

// NewRetryingClient wraps next with the given retrier
func NewRetryingClient(next Completer, retrier *retry.Retrier, m *metrics.Metrics) *RetryingClient {
	return &RetryingClient{
		next:    next,
		retrier: retrier,
		metrics: m,
	}
}

// Complete returns the first successful completion. Permanent errors, a
// cancelled context or exhausted attempts end the loop with the last error.
func (c *RetryingClient) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	var content string

	err := c.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.metrics.Retry()
		}

		out, err := c.next.Complete(ctx, req)
		if err != nil {
			log.Ctx(ctx).Error().
				Err(err).
				Int("attempt", attempt).
				Msg("Error in completion request")
			return err
		}

		content = out
		return nil
	})
	if err != nil {
		return "", err
	}

	return content, nil
}
