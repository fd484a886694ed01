package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bull/finchat/internal/document"
)

// BuildStats reports what Build indexed.
type BuildStats struct {
	Tables        int
	Texts         int
	Indexed       int
	TablesIndexed int
	EmbedFailures int
	StoreFailures int
}

// Skipped returns the number of elements that were not indexed.
func (s *BuildStats) Skipped() int {
	return s.EmbedFailures + s.StoreFailures
}

type pair struct {
	summary string
	element document.Element
}

// Build indexes every (summary, content) pair and returns a Retriever over them.
// Each summary is embedded and stored in vi under a fresh id, and its content is
// stored in cs under the same id. An element whose embedding or storage fails is
// skipped; a failed vector insert removes the already stored content.
func Build(ctx context.Context, vi VectorIndex, cs ContentStore, emb Embedder,
	tableSummaries, tables, textSummaries, texts []string, opts ...Option,
) (*Retriever, *BuildStats, error) {
	if len(tableSummaries) != len(tables) {
		return nil, nil, fmt.Errorf("%w: %d table summaries for %d tables", ErrMisaligned, len(tableSummaries), len(tables))
	}
	if len(textSummaries) != len(texts) {
		return nil, nil, fmt.Errorf("%w: %d text summaries for %d texts", ErrMisaligned, len(textSummaries), len(texts))
	}

	o := newOptions(opts)
	stats := &BuildStats{Tables: len(tables), Texts: len(texts)}

	pairs := make([]pair, 0, len(tables)+len(texts))
	for i, s := range tableSummaries {
		pairs = append(pairs, pair{summary: s, element: document.Table(tables[i])})
	}
	for i, s := range textSummaries {
		pairs = append(pairs, pair{summary: s, element: document.Text(texts[i])})
	}

	for start := 0; start < len(pairs); start += o.batchSize {
		end := min(start+o.batchSize, len(pairs))
		batch := pairs[start:end]

		vecs, err := embedBatch(ctx, emb, batch, o)
		if err != nil {
			return nil, stats, err
		}

		for i, p := range batch {
			if vecs[i] == nil {
				stats.EmbedFailures++
				continue
			}
			if err := insert(ctx, vi, cs, p.element, vecs[i]); err != nil {
				if ctx.Err() != nil {
					return nil, stats, fmt.Errorf("build index: %w", ctx.Err())
				}
				o.logger.Warn("skipping element: store failed", "kind", p.element.Kind, "error", err)
				stats.StoreFailures++
				continue
			}
			stats.Indexed++
			if p.element.Kind == document.KindTable {
				stats.TablesIndexed++
			}
		}
	}

	o.logger.Info("index built",
		"tables", stats.Tables,
		"texts", stats.Texts,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped(),
	)

	return newRetriever(vi, cs, emb, o), stats, nil
}

// embedBatch embeds a batch of summaries. If the batch request fails, each
// summary is embedded on its own; entries that still fail are left nil.
func embedBatch(ctx context.Context, emb Embedder, batch []pair, o options) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.summary
	}

	vecs, err := emb.Embed(ctx, texts)
	if err == nil && len(vecs) == len(batch) {
		return vecs, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("build index: %w", ctx.Err())
	}
	if err != nil {
		o.logger.Warn("batch embedding failed, embedding one by one", "size", len(batch), "error", err)
	}

	vecs = make([][]float32, len(batch))
	for i, text := range texts {
		one, err := emb.Embed(ctx, []string{text})
		if err != nil || len(one) != 1 || len(one[0]) == 0 {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("build index: %w", ctx.Err())
			}
			o.logger.Warn("skipping element: embedding failed", "kind", batch[i].element.Kind, "error", err)
			continue
		}
		vecs[i] = one[0]
	}
	return vecs, nil
}

// insert stores content then vector under one id, undoing the content on failure.
func insert(ctx context.Context, vi VectorIndex, cs ContentStore, el document.Element, vec []float32) error {
	id := uuid.NewString()
	if err := cs.Set(ctx, id, el); err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	if err := vi.Add(ctx, id, vec); err != nil {
		if derr := cs.Delete(context.WithoutCancel(ctx), id); derr != nil {
			return fmt.Errorf("add vector: %w (rollback: %v)", err, derr)
		}
		return fmt.Errorf("add vector: %w", err)
	}
	return nil
}
