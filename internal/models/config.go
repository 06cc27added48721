package models

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything a generation run needs
type Config struct {
	// API settings
	API struct {
		Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
		APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
		Model    string        `mapstructure:"model" yaml:"model"`
		Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"api" yaml:"api"`

	// Generation settings
	Generation struct {
		Samples           int     `mapstructure:"samples" yaml:"samples"`
		Topic             string  `mapstructure:"topic" yaml:"topic"`
		SystemPrompt      string  `mapstructure:"system_prompt" yaml:"system_prompt"`
		InputSystemPrompt string  `mapstructure:"input_system_prompt" yaml:"input_system_prompt"`
		ChunkSize         int     `mapstructure:"chunk_size" yaml:"chunk_size"`
		InputTemperature  float64 `mapstructure:"input_temperature" yaml:"input_temperature"`
		OutputTemperature float64 `mapstructure:"output_temperature" yaml:"output_temperature"`
		InputMaxTokens    int     `mapstructure:"input_max_tokens" yaml:"input_max_tokens"`
		OutputMaxTokens   int     `mapstructure:"output_max_tokens" yaml:"output_max_tokens"`
		Concurrency       int     `mapstructure:"concurrency" yaml:"concurrency"`
		MaxStaleChunks    int     `mapstructure:"max_stale_chunks" yaml:"max_stale_chunks"`
	} `mapstructure:"generation" yaml:"generation"`

	// Retry policy shared by transport, parsing and output retries
	Retry retry.Config `mapstructure:"retry" yaml:"retry"`

	// Output settings
	IO struct {
		OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	} `mapstructure:"io" yaml:"io"`

	Metrics struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"metrics" yaml:"metrics"`

	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.Endpoint = "http://localhost:8000/v1/chat/completions"
	cfg.API.Timeout = 5 * time.Minute

	cfg.Generation.ChunkSize = 8
	cfg.Generation.InputTemperature = 1.0
	cfg.Generation.OutputTemperature = 0.7
	cfg.Generation.InputMaxTokens = 2048
	cfg.Generation.OutputMaxTokens = 4096
	cfg.Generation.Concurrency = 1
	cfg.Generation.MaxStaleChunks = 25

	cfg.Retry = retry.DefaultConfig()

	cfg.IO.OutputFile = "dataset.json"

	return cfg
}

// ValidateEndpoint checks that the endpoint is an absolute http(s) URL
func (c *Config) ValidateEndpoint() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.API.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q: %v", ErrInvalidConfig, c.API.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q must be an absolute http(s) URL", ErrInvalidConfig, c.API.Endpoint)
	}
	return nil
}

// Validate checks the parameters of a run. The generator only receives validated configs.
func (c *Config) Validate() error {
	if err := c.ValidateEndpoint(); err != nil {
		return err
	}

	var problems []string
	if c.API.Model == "" {
		problems = append(problems, "model is required")
	}
	if c.Generation.Samples <= 0 {
		problems = append(problems, "number of samples must be positive")
	}
	if strings.TrimSpace(c.Generation.Topic) == "" {
		problems = append(problems, "topic cannot be empty")
	}
	if c.Generation.ChunkSize <= 0 {
		problems = append(problems, "chunk size must be positive")
	}
	if c.Generation.Concurrency <= 0 {
		problems = append(problems, "concurrency must be positive")
	}
	if c.Generation.InputMaxTokens < 0 || c.Generation.OutputMaxTokens < 0 {
		problems = append(problems, "token budgets cannot be negative")
	}
	if c.Generation.MaxStaleChunks < 0 {
		problems = append(problems, "max stale chunks cannot be negative")
	}
	if c.Retry.MaxAttempts < 0 {
		problems = append(problems, "retry max attempts cannot be negative")
	}
	if c.IO.OutputFile == "" {
		problems = append(problems, "output file is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// OutputPath returns the output file, adding .json when it has no extension
func (c *Config) OutputPath() string {
	return WithJSONExtension(c.IO.OutputFile)
}

// WithJSONExtension appends ".json" to names without an extension
func WithJSONExtension(name string) string {
	if name == "" || filepath.Ext(name) != "" {
		return name
	}
	return name + ".json"
}

var sectionComments = map[string]string{
	"api":        "OpenAI-compatible endpoint. api_key falls back to OPENAI_API_KEY, an empty model is discovered from the endpoint.",
	"generation": "What to generate. output_max_tokens is also set by --context-k (k * 1024).",
	"retry":      "Retry policy for failed requests, unparsable chunks and empty outputs. max_attempts 0 retries forever.",
	"io":         "Output file, .jsonl writes one record per line.",
	"metrics":    "Prometheus listen address, for example :9090. Empty disables the endpoint.",
}

// EncodeYAML renders the configuration as YAML with a comment above each section
func (c *Config) EncodeYAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	if doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if comment, ok := sectionComments[doc.Content[i].Value]; ok {
				doc.Content[i].HeadComment = comment
			}
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// SaveToFile writes the configuration as YAML
func (c *Config) SaveToFile(path string) error {
	data, err := c.EncodeYAML()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory %s: %w", dir, err)
		}
	}

	return os.WriteFile(path, data, 0600)
}
