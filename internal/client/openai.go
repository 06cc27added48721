package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

const (
	DefaultTimeout = 5 * time.Minute

	completionsPath = "chat/completions"
)

// Completer sends one chat completion request and returns the text of the first choice
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// TransportError is a failed completion request: network error, non-2xx
// status or a response without choices
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LLMClient talks to an OpenAI-compatible API
type LLMClient struct {
	BaseURL string
	APIKey  string

	client     openai.Client
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures an LLMClient
type Option func(*LLMClient)

// WithTimeout sets the per-request timeout, zero disables it
func WithTimeout(timeout time.Duration) Option {
	return func(c *LLMClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *LLMClient) {
		c.httpClient = httpClient
	}
}

// WithMetrics records request counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *LLMClient) {
		c.metrics = m
	}
}

// NewLLMClient creates a client for endpoint, which may be either the full
// chat completions URL or the API base URL
func NewLLMClient(endpoint, apiKey string, opts ...Option) *LLMClient {
	c := &LLMClient{
		BaseURL:    BaseURL(endpoint),
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.client = openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.BaseURL),
		option.WithHTTPClient(c.httpClient),
		// retries are handled by RetryingClient
		option.WithMaxRetries(0),
	)

	return c
}

// BaseURL derives the API base URL (with trailing slash) from an endpoint
func BaseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if i := strings.Index(endpoint, completionsPath); i >= 0 {
		endpoint = endpoint[:i]
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}

// ModelsEndpoint returns the models listing URL for an endpoint
func ModelsEndpoint(endpoint string) string {
	return BaseURL(endpoint) + "models"
}

// Complete sends one request without retrying
func (c *LLMClient) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	response, err := c.client.Chat.Completions.New(ctx, params)
	if err == nil && len(response.Choices) == 0 {
		err = &TransportError{Err: errors.New("response contains no choices")}
	}
	c.metrics.ObserveRequest(err, time.Since(start))
	if err != nil {
		return "", classify(err)
	}

	log.Ctx(ctx).Debug().
		Str("model", req.Model).
		Int64("prompt_tokens", response.Usage.PromptTokens).
		Int64("completion_tokens", response.Usage.CompletionTokens).
		Msg("Completion request finished")

	return response.Choices[0].Message.Content, nil
}

// ListModels fetches the ids of the models served by the endpoint
func (c *LLMClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", classify(err))
	}

	ids := make([]string, 0, len(page.Data))
	for _, model := range page.Data {
		if model.ID != "" {
			ids = append(ids, model.ID)
		}
	}

	log.Ctx(ctx).Debug().
		Int("model_count", len(ids)).
		Str("base_url", c.BaseURL).
		Msg("Fetched models")

	return ids, nil
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify wraps err as a TransportError, marking client errors that will
// never succeed on retry (bad key, unknown model, malformed request) as permanent
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		wrapped := &TransportError{StatusCode: apiErr.StatusCode, Err: err}
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return retry.Permanent(wrapped)
		}
		return wrapped
	}

	return &TransportError{Err: err}
}
