// Package extraction turns PDF bytes into table and narrative text elements
// using an Unstructured-compatible partition service.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/bull/finchat/internal/document"
)

const (
	// DefaultTimeout bounds one partition request.
	DefaultTimeout = 120 * time.Second

	// DefaultWorkers bounds concurrent partition requests in ExtractAll.
	DefaultWorkers = 4

	maxErrorBody = 4 << 10
)

// Config configures a Client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Workers int
	Retries int
}

// Client calls the partition service.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	workers    int
	retries    uint64
	logger     *slog.Logger

	initialInterval time.Duration
}

// StatusError reports a non-2xx response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("partition service returned %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient creates a Client. A nil logger falls back to slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	retries := uint64(0)
	if cfg.Retries > 0 {
		retries = uint64(cfg.Retries)
	}
	return &Client{
		url:             cfg.URL,
		apiKey:          cfg.APIKey,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		workers:         cfg.Workers,
		retries:         retries,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
	}
}

// Extract partitions one PDF and returns its tables and narrative texts.
// An empty service response yields an empty extraction and no error.
func (c *Client) Extract(ctx context.Context, data []byte) (*document.Extraction, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ErrNotConfigured)
	}

	body, contentType, err := encodeForm(data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrExtractionFailed, err)
	}

	var elements []RawElement
	attempt := 0
	operation := func() error {
		attempt++
		raw, err := c.post(ctx, body, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			var se *StatusError
			if errors.As(err, &se) && !se.retryable() {
				return backoff.Permanent(err)
			}
			c.logger.Warn("partition request failed", "attempt", attempt, "error", err)
			return err
		}
		elements, err = decodeElements(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	out := Classify(elements)
	c.logger.Debug("document partitioned",
		"elements", len(elements),
		"tables", len(out.Tables),
		"texts", len(out.Texts),
	)
	return out, nil
}

// ExtractAll partitions several documents concurrently and merges the results by type
// in input order. The first failure cancels the remaining requests.
func (c *Client) ExtractAll(ctx context.Context, docs [][]byte) (*document.Extraction, error) {
	results := make([]*document.Extraction, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, data := range docs {
		g.Go(func() error {
			ext, err := c.Extract(gctx, data)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = ext
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &document.Extraction{}
	for _, r := range results {
		merged.Merge(r)
	}
	return merged, nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return io.ReadAll(resp.Body)
}

func encodeForm(data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="document"`)
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// decodeElements accepts an empty body, null, or a JSON array.
func decodeElements(raw []byte) ([]RawElement, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var elements []RawElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return elements, nil
}
