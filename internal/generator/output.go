package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/XeTute/Synthetic-Data-Generation/internal/client"
	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/progress"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// ErrEmptyOutput is returned when the model keeps answering with empty content
var ErrEmptyOutput = errors.New("empty output")

// OutputOptions configures an OutputGenerator
type OutputOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Concurrency is the number of inputs answered at once, 1 keeps requests sequential
	Concurrency int
	// Retry governs re-asking when a response is empty
	Retry      *retry.Retrier
	Metrics    *metrics.Metrics
	OnProgress progress.Func
}

// OutputGenerator answers collected inputs
type OutputGenerator struct {
	client client.Completer
	opts   OutputOptions
	now    func() time.Time
}

// NewOutputGenerator creates a generator sending requests through c
func NewOutputGenerator(c client.Completer, opts OutputOptions) *OutputGenerator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.DefaultConfig())
	}
	if opts.OnProgress == nil {
		opts.OnProgress = progress.Nop
	}

	return &OutputGenerator{
		client: c,
		opts:   opts,
		now:    time.Now,
	}
}

// Generate returns a non-empty answer to input
func (g *OutputGenerator) Generate(ctx context.Context, input, systemPrompt string) (string, error) {
	logger := log.Ctx(ctx)
	req := models.NewCompletionRequest(g.opts.Model, systemPrompt, input, g.opts.Temperature, g.opts.MaxTokens)

	var (
		output    string
		clientErr error
	)

	err := g.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			g.opts.Metrics.Retry()
		}

		out, err := g.client.Complete(ctx, req)
		if err != nil {
			clientErr = err
			return retry.Permanent(err)
		}

		if strings.TrimSpace(out) == "" {
			g.opts.Metrics.EmptyOutput()
			logger.Error().
				Int("attempt", attempt).
				Str("input", truncate(input)).
				Msg("Error processing input, empty output. Retrying...")
			return ErrEmptyOutput
		}

		output = out
		return nil
	})
	if clientErr != nil {
		return "", clientErr
	}
	if err != nil {
		return "", err
	}

	return output, nil
}

// GenerateAll answers every input. outputs[i] belongs to inputs[i] and is
// empty when that input failed. Inputs that fail after retries are skipped;
// permanent client errors and cancellation stop the whole batch and are returned
// together with the outputs produced so far.
func (g *OutputGenerator) GenerateAll(ctx context.Context, inputs []string, systemPrompt string) ([]string, error) {
	outputs := make([]string, len(inputs))
	total := len(inputs)
	start := g.now()

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		g.opts.OnProgress(done, total, g.now().Sub(start))
	}

	answer := func(ctx context.Context, i int) error {
		logger := log.Ctx(ctx)
		logger.Info().
			Int("index", i+1).
			Int("total", total).
			Str("input", truncate(inputs[i])).
			Msg("Generating output for input")

		out, err := g.Generate(ctx, inputs[i], systemPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retry.IsPermanent(err) {
				return fmt.Errorf("input %d: %w", i+1, err)
			}
			logger.Error().
				Err(err).
				Str("input", truncate(inputs[i])).
				Msg("Giving up on input")
			report()
			return nil
		}

		logger.Info().
			Int("index", i+1).
			Str("output", truncate(out)).
			Msg("Output generated")
		outputs[i] = out
		report()
		return nil
	}

	if g.opts.Concurrency == 1 {
		for i := range inputs {
			if err := answer(ctx, i); err != nil {
				return outputs, err
			}
		}
		return outputs, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.opts.Concurrency)
	for i := range inputs {
		if groupCtx.Err() != nil {
			break
		}
		i := i
		group.Go(func() error {
			return answer(groupCtx, i)
		})
	}
	if err := group.Wait(); err != nil {
		return outputs, err
	}
	return outputs, ctx.Err()
}
