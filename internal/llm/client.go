// Package llm sends single-turn chat completions to an OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// ErrCompletionFailed wraps every error returned by Complete.
var ErrCompletionFailed = errors.New("llm completion failed")

// Request is one prompt for the chat model.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Config configures a Client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Retries is the number of retries after the first attempt. Zero or
	// negative disables retry.
	Retries int
}

// Client calls the chat completions endpoint. It is safe for concurrent use.
type Client struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
	retries uint64
	logger  *slog.Logger

	// initialInterval is shortened in tests.
	initialInterval time.Duration
}

// NewClient creates a Client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are handled here so the limiter sees every attempt
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	retries := uint64(0)
	if cfg.Retries > 0 {
		retries = uint64(cfg.Retries)
	}

	return &Client{
		client:          openai.NewClient(opts...),
		model:           cfg.Model,
		limiter:         rate.NewLimiter(limit, 1),
		retries:         retries,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
	}, nil
}

// OpenAI returns the underlying client so the embedding package can share the transport.
func (c *Client) OpenAI() *openai.Client {
	return &c.client
}

// Model returns the chat model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the request and returns the trimmed text of the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    buildMessages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var content string
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				if uint64(attempt) <= c.retries {
					c.logger.Warn("chat completion failed, retrying", "attempt", attempt, "error", err)
				}
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("response has no choices"))
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return content, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	return append(messages, openai.UserMessage(req.User))
}

// isRetryable reports whether the error is a rate limit, a server error, or a transport failure.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
