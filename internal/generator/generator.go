package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/XeTute/Synthetic-Data-Generation/internal/client"
	"github.com/XeTute/Synthetic-Data-Generation/internal/dataset"
	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/progress"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// Summary describes a finished run
type Summary struct {
	RunID       string
	Inputs      int
	Records     int
	Failed      int
	Path        string
	Saved       bool
	Interrupted bool
	Duration    time.Duration
}

// DatasetGenerator runs input collection, output generation and saving
type DatasetGenerator struct {
	Config  *models.Config
	Client  client.Completer
	Writer  dataset.Writer
	Metrics *metrics.Metrics
	Out     io.Writer
	RunID   string

	Shutdown atomic.Bool
	spinner  *spinner.Spinner
}

// NewDatasetGenerator creates a generator for a validated config
func NewDatasetGenerator(config *models.Config, c client.Completer, w dataset.Writer, m *metrics.Metrics) *DatasetGenerator {
	return &DatasetGenerator{
		Config:  config,
		Client:  c,
		Writer:  w,
		Metrics: m,
		Out:     os.Stdout,
		RunID:   uuid.NewString(),
	}
}

// Run generates the dataset. A run that ends with zero records is not an
// error; permanent API errors and save failures are.
func (g *DatasetGenerator) Run(parent context.Context) (*Summary, error) {
	started := time.Now()
	cfg := g.Config
	summary := &Summary{
		RunID: g.RunID,
		Path:  cfg.OutputPath(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := log.Ctx(ctx).With().Str("run_id", g.RunID).Logger()
	ctx = logger.WithContext(ctx)

	go func() {
		select {
		case <-sigChan:
			if g.spinner != nil && g.spinner.Active() {
				g.spinner.Stop()
			}
			fmt.Fprintln(g.Out, color.YellowString("\n🛑 Interrupt received, saving what was generated so far..."))
			g.Shutdown.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	successColor := color.New(color.FgGreen).SprintFunc()
	errorColor := color.New(color.FgRed).SprintFunc()
	target := cfg.Generation.Samples

	fmt.Fprintf(g.Out, "\n🚀 Generating %s unique inputs about %s\n\n",
		successColor(fmt.Sprintf("%d", target)), color.CyanString(truncate(cfg.Generation.Topic)))

	retrier := retry.New(cfg.Retry)
	track := func(bar *progress.Bar) progress.Func {
		return func(completed, total int, elapsed time.Duration) {
			bar.Update(completed, total, elapsed)
			logger.Debug().Msg(progress.Line(completed, total, elapsed, 40))
		}
	}

	inputBar := progress.NewBar(g.Out, target, "🧠 Inputs...")
	collector := NewCollector(g.Client, CollectorOptions{
		Model:          cfg.API.Model,
		ChunkSize:      cfg.Generation.ChunkSize,
		Temperature:    cfg.Generation.InputTemperature,
		MaxTokens:      cfg.Generation.InputMaxTokens,
		MaxStaleChunks: cfg.Generation.MaxStaleChunks,
		Retry:          retrier,
		Metrics:        g.Metrics,
		OnProgress:     track(inputBar),
	})

	logger.Info().Msg("Starting to generate unique inputs")
	inputs, runErr := collector.Collect(ctx, target, cfg.Generation.Topic, cfg.Generation.InputSystemPrompt)
	_ = inputBar.Close()
	summary.Inputs = len(inputs)

	if runErr != nil && ctx.Err() == nil {
		if retry.IsPermanent(runErr) {
			return g.finish(summary, started, runErr)
		}
		fmt.Fprintln(g.Out, errorColor(fmt.Sprintf("\n❌ Input collection stopped early: %v", runErr)))
		logger.Warn().
			Err(runErr).
			Int("collected", len(inputs)).
			Int("requested", target).
			Msg("Continuing with the inputs collected so far")
		runErr = nil
	}

	ds := models.NewDataset()
	if len(inputs) > 0 && ctx.Err() == nil {
		fmt.Fprintf(g.Out, "\n✍️  Generating outputs for %s inputs\n\n", successColor(fmt.Sprintf("%d", len(inputs))))

		outputBar := progress.NewBar(g.Out, len(inputs), "💬 Outputs...")
		outputs := NewOutputGenerator(g.Client, OutputOptions{
			Model:       cfg.API.Model,
			Temperature: cfg.Generation.OutputTemperature,
			MaxTokens:   cfg.Generation.OutputMaxTokens,
			Concurrency: cfg.Generation.Concurrency,
			Retry:       retrier,
			Metrics:     g.Metrics,
			OnProgress:  track(outputBar),
		})

		logger.Info().Msg("Starting generation of input-output pairs")
		answers, err := outputs.GenerateAll(ctx, inputs, cfg.Generation.SystemPrompt)
		_ = outputBar.Close()
		if err != nil && ctx.Err() == nil {
			runErr = err
		}

		answeredInputs, answeredOutputs := Completed(inputs, answers)
		ds.Add(Assemble(answeredInputs, answeredOutputs, cfg.Generation.SystemPrompt)...)
		summary.Failed = len(inputs) - ds.Len()
	}

	summary.Records = ds.Len()
	g.Metrics.Records(ds.Len())

	if ds.Len() == 0 {
		fmt.Fprintln(g.Out, errorColor("\n⚠️ No valid samples generated."))
		logger.Error().Msg("No valid samples generated")
		return g.finish(summary, started, g.stopReason(parent, runErr))
	}

	if err := g.save(ds.Records); err != nil {
		fmt.Fprintln(g.Out, errorColor(fmt.Sprintf("❌ Error saving dataset: %v", err)))
		return g.finish(summary, started, err)
	}
	summary.Saved = true
	g.printStatistics(summary, target)

	logger.Info().
		Int("records", ds.Len()).
		Str("path", summary.Path).
		Msg("Successfully generated samples")

	return g.finish(summary, started, g.stopReason(parent, runErr))
}

// stopReason reports cancellation ahead of other errors
func (g *DatasetGenerator) stopReason(parent context.Context, err error) error {
	if g.Shutdown.Load() {
		return context.Canceled
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	return err
}

func (g *DatasetGenerator) finish(summary *Summary, started time.Time, err error) (*Summary, error) {
	summary.Duration = time.Since(started)
	summary.Interrupted = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	return summary, err
}

func (g *DatasetGenerator) save(records []models.Record) error {
	g.spinner = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(g.Out))
	g.spinner.Suffix = " Saving results..."
	g.spinner.Color("cyan")
	g.spinner.Start()
	defer g.spinner.Stop()

	return g.Writer.Write(records)
}

func (g *DatasetGenerator) printStatistics(summary *Summary, target int) {
	successColor := color.New(color.FgGreen).SprintFunc()
	errorColor := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(g.Out)
	fmt.Fprintln(g.Out, "📊 "+successColor("Statistics:"))
	fmt.Fprintf(g.Out, "  ✅ Records: %s\n", successColor(fmt.Sprintf("%d", summary.Records)))
	if summary.Failed > 0 {
		fmt.Fprintf(g.Out, "  ❌ Failed inputs: %s\n", errorColor(fmt.Sprintf("%d", summary.Failed)))
	}
	fmt.Fprintf(g.Out, "  📦 Unique inputs: %s of %s\n",
		successColor(fmt.Sprintf("%d", summary.Inputs)),
		successColor(fmt.Sprintf("%d", target)))

	fmt.Fprintln(g.Out)
	fmt.Fprintf(g.Out, "💾 Results saved to %s", color.CyanString(summary.Path))
	if info, err := os.Stat(summary.Path); err == nil {
		fmt.Fprintf(g.Out, " (%s)\n", color.GreenString(humanize.IBytes(uint64(info.Size()))))
	} else {
		fmt.Fprintln(g.Out)
	}
}
