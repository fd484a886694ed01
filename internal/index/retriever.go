package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/finchat/internal/document"
)

// Retriever answers questions with the full content behind the nearest summaries.
type Retriever struct {
	vi       VectorIndex
	cs       ContentStore
	emb      Embedder
	topK     int
	minScore float32
	logger   *slog.Logger
}

func newRetriever(vi VectorIndex, cs ContentStore, emb Embedder, o options) *Retriever {
	return &Retriever{
		vi:       vi,
		cs:       cs,
		emb:      emb,
		topK:     o.topK,
		minScore: o.minScore,
		logger:   o.logger,
	}
}

// TopK returns the retrieval width.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve embeds the query, finds the nearest summaries, and returns their
// full content ranked by similarity. No hits is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]document.Element, error) {
	vecs, err := r.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	hits, err := r.vi.Search(ctx, vecs[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	elements := make([]document.Element, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.minScore {
			continue
		}
		el, err := r.cs.Get(ctx, h.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Warn("vector without content", "id", h.ID)
				continue
			}
			return nil, fmt.Errorf("get content %s: %w", h.ID, err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}
