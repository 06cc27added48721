package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/XeTute/Synthetic-Data-Generation/internal/client"
	"github.com/XeTute/Synthetic-Data-Generation/internal/dataset"
	"github.com/XeTute/Synthetic-Data-Generation/internal/generator"
	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/prompt"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// ErrNoModels is returned when the endpoint serves no models
var ErrNoModels = errors.New("no models available")

// ErrAmbiguousModel is returned when several models are served and none was chosen
var ErrAmbiguousModel = errors.New("several models available, choose one with --model")

type generateOptions struct {
	interactive bool
	contextK    int
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	defaults := models.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset",
		Long: `Generate collects unique inputs about a topic in chunks, answers every input and
saves the instruction/input/output records.

An empty --model is resolved from the endpoint's model list: a single model is picked
automatically, several models need --model or --interactive.`,
		Example: `
  sdg generate --samples 100 --topic "Versatile questions about Pakistan"
  sdg generate --interactive
  sdg generate -n 50 --topic physics --system-prompt "Answer like a tutor." -o physics.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "ask for missing settings on the console")
	flags.IntVar(&opts.contextK, "context-k", 0, "context length in k tokens, sets the output token budget to k*1024")
	flags.String("model", "", "model name (default: discovered from the endpoint)")
	flags.IntP("samples", "n", 0, "number of records to generate")
	flags.StringP("topic", "t", "", "topic of the generated inputs")
	flags.String("system-prompt", "", "system prompt for the outputs, stored as the instruction of every record")
	flags.String("input-system-prompt", "", "system prompt sent with the input chunk requests")
	flags.Int("chunk-size", defaults.Generation.ChunkSize, "inputs asked for per request")
	flags.Float64("input-temperature", defaults.Generation.InputTemperature, "temperature of the input chunk requests")
	flags.Float64("output-temperature", defaults.Generation.OutputTemperature, "temperature of the output requests")
	flags.Int("input-max-tokens", defaults.Generation.InputMaxTokens, "completion token budget of the input chunk requests, 0 omits it")
	flags.Int("output-max-tokens", defaults.Generation.OutputMaxTokens, "completion token budget of the output requests, 0 omits it")
	flags.Int("concurrency", defaults.Generation.Concurrency, "outputs generated at once")
	flags.Int("max-stale-chunks", defaults.Generation.MaxStaleChunks, "stop collecting after this many chunks in a row without new inputs, 0 never stops")
	flags.Int("max-attempts", defaults.Retry.MaxAttempts, "attempts per request, chunk and output, 0 retries forever")
	flags.StringP("output", "o", defaults.IO.OutputFile, "output file, .json is appended to names without an extension")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, for example :9090")

	a.bindFlags(flags, map[string]string{
		"api.model":                      "model",
		"generation.samples":             "samples",
		"generation.topic":               "topic",
		"generation.system_prompt":       "system-prompt",
		"generation.input_system_prompt": "input-system-prompt",
		"generation.chunk_size":          "chunk-size",
		"generation.input_temperature":   "input-temperature",
		"generation.output_temperature":  "output-temperature",
		"generation.input_max_tokens":    "input-max-tokens",
		"generation.output_max_tokens":   "output-max-tokens",
		"generation.concurrency":         "concurrency",
		"generation.max_stale_chunks":    "max-stale-chunks",
		"retry.max_attempts":             "max-attempts",
		"io.output_file":                 "output",
		"metrics.addr":                   "metrics-addr",
	})

	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	var reader *prompt.Reader
	if opts.interactive {
		reader = prompt.NewReader(cmd.InOrStdin(), out)
		if err := askMissing(reader, cfg, cmd, opts); err != nil {
			return err
		}
	}
	if opts.contextK < 0 {
		return fmt.Errorf("%w: context length must be positive", models.ErrInvalidConfig)
	}
	if opts.contextK > 0 {
		cfg.Generation.OutputMaxTokens = opts.contextK * 1024
	}

	if err := cfg.ValidateEndpoint(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	llm := client.NewLLMClient(cfg.API.Endpoint, cfg.API.APIKey,
		client.WithTimeout(cfg.API.Timeout),
		client.WithMetrics(m),
	)

	if cfg.API.Model == "" {
		model, err := discoverModel(ctx, llm, reader, out)
		if err != nil {
			return err
		}
		cfg.API.Model = model
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, registry); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server stopped")
			}
		}()
	}

	completer := client.NewRetryingClient(llm, retry.New(cfg.Retry), m)
	g := generator.NewDatasetGenerator(cfg, completer, dataset.NewFileWriter(cfg.OutputPath()), m)
	g.Out = out

	log.Info().
		Str("run_id", g.RunID).
		Str("model", cfg.API.Model).
		Str("base_url", llm.BaseURL).
		Int("samples", cfg.Generation.Samples).
		Msg("Starting generation")

	summary, err := g.Run(ctx)
	if err != nil {
		if summary != nil && summary.Interrupted {
			if summary.Saved {
				fmt.Fprintf(out, "%s\n", color.YellowString("Run interrupted, %d records saved", summary.Records))
				return nil
			}
			return fmt.Errorf("run interrupted: %w", err)
		}
		return err
	}

	fmt.Fprintf(out, "\n%s %s\n", color.GreenString("✓"), fmt.Sprintf("Finished in %s.", formatDuration(summary.Duration)))
	return nil
}

// askMissing fills the settings the user did not give through flags or files
func askMissing(r *prompt.Reader, cfg *models.Config, cmd *cobra.Command, opts *generateOptions) error {
	flags := cmd.Flags()

	if !flags.Changed("endpoint") {
		answer, err := r.Line(fmt.Sprintf("Enter the OpenAI-compatible completions endpoint [%s]:", cfg.API.Endpoint))
		if err != nil {
			return err
		}
		if answer != "" {
			cfg.API.Endpoint = answer
		}
	}

	if cfg.API.APIKey == "" {
		key, err := r.Line("Enter your API key (leave empty for none):")
		if err != nil {
			return err
		}
		cfg.API.APIKey = key
	}

	if cfg.Generation.Samples <= 0 {
		n, err := r.Int("How many samples do you need?")
		if err != nil {
			return fmt.Errorf("%w: invalid input for number of samples: %v", models.ErrInvalidConfig, err)
		}
		if n <= 0 {
			return fmt.Errorf("%w: number of samples must be positive", models.ErrInvalidConfig)
		}
		cfg.Generation.Samples = n
	}

	if cfg.Generation.Topic == "" {
		topic, err := r.Block(`Enter topics (example: "Versatile questions about Pakistan"):`, prompt.DefaultSentinel)
		if err != nil {
			return err
		}
		if topic == "" {
			return fmt.Errorf("%w: topics cannot be empty", models.ErrInvalidConfig)
		}
		cfg.Generation.Topic = topic
	}

	if cfg.Generation.SystemPrompt == "" && !flags.Changed("system-prompt") {
		systemPrompt, err := r.Block("Enter system prompt (leave empty for none):", prompt.DefaultSentinel)
		if err != nil {
			return err
		}
		cfg.Generation.SystemPrompt = systemPrompt
	}

	if opts.contextK == 0 && !flags.Changed("output-max-tokens") {
		answer, err := r.Line(fmt.Sprintf("How many k (= *1024) context length does your endpoint support? [%d tokens]:",
			cfg.Generation.OutputMaxTokens))
		if err != nil {
			return err
		}
		if answer != "" {
			k, err := strconv.Atoi(answer)
			if err != nil || k <= 0 {
				return fmt.Errorf("%w: invalid input for context length", models.ErrInvalidConfig)
			}
			opts.contextK = k
		}
	}

	if !flags.Changed("output") {
		name, err := r.Line(fmt.Sprintf("Where should the dataset be saved? (.json is appended without an extension) [%s]:",
			cfg.IO.OutputFile))
		if err != nil {
			return err
		}
		if name != "" {
			cfg.IO.OutputFile = models.WithJSONExtension(name)
		}
	}

	return nil
}

// ModelLister lists the models served by an endpoint
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// discoverModel picks the model to use from the endpoint's model list. With
// several models, r (when not nil) is used to ask for one.
func discoverModel(ctx context.Context, lister ModelLister, r *prompt.Reader, out io.Writer) (string, error) {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Fetching models..."
	s.Color("cyan")
	s.Start()
	ids, err := lister.ListModels(ctx)
	s.Stop()
	if err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", ErrNoModels
	case 1:
		log.Info().Str("model", ids[0]).Msg("Only one model available, auto-selected")
		fmt.Fprintf(out, "Only one model available. Auto-selected: %s\n", color.CyanString(ids[0]))
		return ids[0], nil
	}

	if r == nil {
		return "", fmt.Errorf("%w: %v", ErrAmbiguousModel, ids)
	}

	fmt.Fprintln(out, color.New(color.Bold).Sprint("--- Select a Model ---"))
	model, err := r.Choose("Enter modelID (number):", ids)
	if err != nil {
		return "", err
	}
	log.Info().Str("model", model).Msg("Selected model")
	return model, nil
}

// formatDuration converts duration to a readable format
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
