package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds one classifier request.
const DefaultTimeout = 10 * time.Second

type options struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithTimeout sets the hosted classifier request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// HTTPClassifier calls a hosted question classifier.
type HTTPClassifier struct {
	endpoint string
	timeout  time.Duration

	once   sync.Once
	client *http.Client
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Prediction string `json:"prediction"`
}

// NewHTTPClassifier creates a classifier for endpoint. The HTTP client is
// created on first use.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClassifier{endpoint: endpoint, timeout: timeout}
}

func (c *HTTPClassifier) httpClient() *http.Client {
	c.once.Do(func() {
		c.client = &http.Client{Timeout: c.timeout}
	})
	return c.client
}

// Classify posts the question and parses the predicted label.
func (c *HTTPClassifier) Classify(ctx context.Context, question string) (Label, error) {
	body, err := json.Marshal(classifyRequest{Text: question})
	if err != nil {
		return "", fmt.Errorf("encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	return ParseLabel(out.Prediction)
}
