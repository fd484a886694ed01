// Package index implements the multi-vector index: summary embeddings are searched,
// full element content is returned.
package index

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bull/finchat/internal/document"
)

var (
	// ErrMisaligned is returned when summaries and contents differ in length.
	ErrMisaligned = errors.New("summaries and contents are not aligned")

	// ErrNotFound is returned by ContentStore.Get for unknown ids.
	ErrNotFound = errors.New("entry not found")

	// ErrDimensionMismatch is returned when a vector's length differs from the index's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

const (
	// DefaultTopK is the number of elements returned per question.
	DefaultTopK = 4

	// DefaultBatchSize is the number of summaries embedded per request during Build.
	DefaultBatchSize = 64
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one nearest-neighbor result.
type Hit struct {
	ID    string
	Score float32
}

// VectorIndex stores summary vectors by id.
type VectorIndex interface {
	Add(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Delete(ctx context.Context, id string) error
}

// ContentStore maps ids to full element content.
type ContentStore interface {
	Set(ctx context.Context, id string, el document.Element) error
	Get(ctx context.Context, id string) (document.Element, error)
	Delete(ctx context.Context, id string) error
}

type options struct {
	topK      int
	minScore  float32
	batchSize int
	logger    *slog.Logger
}

// Option configures Build and the Retriever it returns.
type Option func(*options)

// WithTopK sets the retrieval width.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMinScore drops hits scoring below s.
func WithMinScore(s float32) Option {
	return func(o *options) { o.minScore = s }
}

// WithBatchSize sets how many summaries are embedded per request.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		topK:      DefaultTopK,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
