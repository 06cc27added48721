package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/XeTute/Synthetic-Data-Generation/internal/client"
	"github.com/XeTute/Synthetic-Data-Generation/internal/extract"
	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/progress"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// DefaultChunkSize is the number of inputs asked for per request
const DefaultChunkSize = 8

// ErrStalled is returned when too many chunks in a row brought no new inputs
var ErrStalled = errors.New("no new unique inputs")

// CollectorOptions configures a Collector
type CollectorOptions struct {
	Model       string
	ChunkSize   int
	Temperature float64
	MaxTokens   int
	// MaxStaleChunks bounds consecutive chunks without a new input, 0 means no bound
	MaxStaleChunks int
	// Retry governs re-asking a chunk whose response had no parsable list
	Retry      *retry.Retrier
	Metrics    *metrics.Metrics
	OnProgress progress.Func
}

// Collector accumulates unique inputs about a topic chunk by chunk
type Collector struct {
	client client.Completer
	opts   CollectorOptions
	now    func() time.Time
}

// NewCollector creates a collector sending requests through c
func NewCollector(c client.Completer, opts CollectorOptions) *Collector {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.DefaultConfig())
	}
	if opts.OnProgress == nil {
		opts.OnProgress = progress.Nop
	}

	return &Collector{
		client: c,
		opts:   opts,
		now:    time.Now,
	}
}

// ChunkPrompt is the instruction asking for size inputs about topic
func ChunkPrompt(size int, topic string) string {
	return fmt.Sprintf(
		"Generate exactly %d diverse, unique inputs about %s. \n"+
			"Return ONLY a (Python) list including these inputs, strictly formatted like: [\"input1\", \"input2\", ...]",
		size, topic)
}

// Collect returns target distinct, non-empty inputs in the order they were
// first seen. On error the inputs collected so far are returned with it.
func (c *Collector) Collect(ctx context.Context, target int, topic, systemPrompt string) ([]string, error) {
	logger := log.Ctx(ctx)

	accumulated := make([]string, 0, target)
	seen := make(map[string]struct{}, target)
	start := c.now()
	stale := 0

	for chunk := 1; len(accumulated) < target; chunk++ {
		missing := target - len(accumulated)
		size := min(c.opts.ChunkSize, missing)

		logger.Info().
			Int("chunk", chunk).
			Int("size", size).
			Str("topic", truncate(topic)).
			Msg("Requesting chunk of new inputs")

		items, err := c.requestChunk(ctx, chunk, models.NewCompletionRequest(
			c.opts.Model, systemPrompt, ChunkPrompt(size, topic), c.opts.Temperature, c.opts.MaxTokens))
		if err != nil {
			return accumulated, fmt.Errorf("chunk %d: %w", chunk, err)
		}

		fresh := make([]string, 0, len(items))
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			fresh = append(fresh, item)
		}
		c.opts.Metrics.Duplicates(len(items) - len(fresh))

		if len(fresh) > missing {
			logger.Info().
				Int("received", len(accumulated)+len(fresh)).
				Int("requested", target).
				Msgf("Received more unique inputs than requested, using first %d", target)
			fresh = fresh[:missing]
		}

		for _, item := range fresh {
			seen[item] = struct{}{}
			accumulated = append(accumulated, item)
		}

		if len(fresh) == 0 {
			stale++
			logger.Warn().
				Int("chunk", chunk).
				Int("stale_chunks", stale).
				Msg("Chunk brought no new unique inputs")
			if c.opts.MaxStaleChunks > 0 && stale >= c.opts.MaxStaleChunks {
				return accumulated, fmt.Errorf("%w after %d chunks in a row", ErrStalled, stale)
			}
		} else {
			stale = 0
		}

		c.opts.OnProgress(len(accumulated), target, c.now().Sub(start))
	}

	return accumulated, nil
}

// requestChunk asks for one chunk until its response parses. Client errors
// end the chunk at once since the client has its own retry policy.
func (c *Collector) requestChunk(ctx context.Context, chunk int, req models.CompletionRequest) ([]string, error) {
	logger := log.Ctx(ctx)

	var (
		items     []string
		clientErr error
	)

	err := c.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.opts.Metrics.Retry()
		}

		raw, err := c.client.Complete(ctx, req)
		if err != nil {
			clientErr = err
			return retry.Permanent(err)
		}

		parsed, err := extract.List(raw)
		if err != nil {
			c.opts.Metrics.ParseFailure()
			logger.Error().
				Err(err).
				Int("chunk", chunk).
				Int("attempt", attempt).
				Str("raw", truncate(raw)).
				Msg("Parsing failed for chunk, retrying this chunk")
			return err
		}

		logger.Info().
			Int("chunk", chunk).
			Int("count", len(parsed)).
			Msg("Chunk returned inputs")
		for _, item := range parsed {
			logger.Debug().Int("chunk", chunk).Msg("  - " + truncate(item))
		}

		items = parsed
		return nil
	})
	if clientErr != nil {
		return nil, clientErr
	}
	if err != nil {
		return nil, err
	}

	return items, nil
}
