// Package cli implements the sdg command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
)

// EnvPrefix prefixes every environment variable read by the CLI
const EnvPrefix = "SDG"

// app holds the state shared by the commands of one root command
type app struct {
	v        *viper.Viper
	cfgFile  string
	logLevel string
	quiet    bool
}

// NewRootCmd builds the command tree with its own configuration registry
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := models.DefaultConfig()
	setDefaults(a.v, defaults)

	rootCmd := &cobra.Command{
		Use:   "sdg",
		Short: "Synthetic instruction/input/output dataset generator",
		Long: `sdg asks an OpenAI-compatible chat completions endpoint for unique inputs about a
topic, answers every input with the same model and saves the instruction/input/output
records as a JSON dataset.

Settings come from flags, SDG_* environment variables, a .env file and an optional
YAML config file (see "sdg config init").`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(cmd.ErrOrStderr()); err != nil {
				return err
			}
			a.initLogging(cmd.ErrOrStderr())
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./sdg.yaml or $HOME/.sdg/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error, disabled)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-essential output")
	flags.String("endpoint", defaults.API.Endpoint, "OpenAI-compatible chat completions endpoint or API base URL")
	flags.String("api-key", "", "API key sent as a bearer token (default $OPENAI_API_KEY)")
	flags.Duration("timeout", defaults.API.Timeout, "per-request timeout, 0 disables it")
	flags.Bool("debug", false, "shortcut for --log-level debug")

	a.bindFlags(flags, map[string]string{
		"api.endpoint": "endpoint",
		"api.api_key":  "api-key",
		"api.timeout":  "timeout",
		"debug":        "debug",
	})

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newModelsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}
}

// initConfig reads the .env file, environment variables and the config file
func (a *app) initConfig(stderr io.Writer) error {
	_ = godotenv.Load()

	v := a.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.api_key", EnvPrefix+"_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("api.endpoint", EnvPrefix+"_ENDPOINT")
	_ = v.BindEnv("api.model", EnvPrefix+"_MODEL")

	path := a.cfgFile
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", models.ErrInvalidConfig, path, err)
	}
	if !a.quiet {
		fmt.Fprintf(stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}
	return nil
}

// findConfigFile returns ./sdg.yaml or $HOME/.sdg/config.yaml, whichever exists first
func findConfigFile() string {
	candidates := []string{"sdg.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".sdg", "config.yaml"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// initLogging configures the global logger
func (a *app) initLogging(stderr io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := a.logLevel
	if a.v.GetBool("debug") {
		level = "debug"
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"})
	zerolog.DefaultContextLogger = &log.Logger
}

// loadConfig merges every configuration source over the defaults
func (a *app) loadConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// setDefaults registers every config key so environment variables and
// config files can override it
func setDefaults(v *viper.Viper, cfg *models.Config) {
	v.SetDefault("api.endpoint", cfg.API.Endpoint)
	v.SetDefault("api.api_key", cfg.API.APIKey)
	v.SetDefault("api.model", cfg.API.Model)
	v.SetDefault("api.timeout", cfg.API.Timeout)

	v.SetDefault("generation.samples", cfg.Generation.Samples)
	v.SetDefault("generation.topic", cfg.Generation.Topic)
	v.SetDefault("generation.system_prompt", cfg.Generation.SystemPrompt)
	v.SetDefault("generation.input_system_prompt", cfg.Generation.InputSystemPrompt)
	v.SetDefault("generation.chunk_size", cfg.Generation.ChunkSize)
	v.SetDefault("generation.input_temperature", cfg.Generation.InputTemperature)
	v.SetDefault("generation.output_temperature", cfg.Generation.OutputTemperature)
	v.SetDefault("generation.input_max_tokens", cfg.Generation.InputMaxTokens)
	v.SetDefault("generation.output_max_tokens", cfg.Generation.OutputMaxTokens)
	v.SetDefault("generation.concurrency", cfg.Generation.Concurrency)
	v.SetDefault("generation.max_stale_chunks", cfg.Generation.MaxStaleChunks)

	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", cfg.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)
	v.SetDefault("retry.backoff_factor", cfg.Retry.BackoffFactor)
	v.SetDefault("retry.jitter", cfg.Retry.Jitter)

	v.SetDefault("io.output_file", cfg.IO.OutputFile)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("debug", cfg.Debug)
}

// getVersion returns the version information
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
