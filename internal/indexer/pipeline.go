// Package indexer runs the build phase: documents are partitioned into tables
// and texts, each element is summarized, and the summaries are indexed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/extraction"
	"github.com/bull/finchat/internal/index"
	"github.com/bull/finchat/internal/metrics"
	"github.com/bull/finchat/internal/summarize"
)

// ErrNoSources is returned when Index is called without documents.
var ErrNoSources = errors.New("no documents to index")

// Source is one document to index. Name selects the partitioner: Markdown
// files are parsed locally, everything else goes to the extraction service.
type Source struct {
	Name string
	Data []byte
}

// IsMarkdown reports whether the source is a Markdown file.
func (s Source) IsMarkdown() bool {
	switch strings.ToLower(filepath.Ext(s.Name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Extractor partitions PDF documents.
type Extractor interface {
	ExtractAll(ctx context.Context, docs [][]byte) (*document.Extraction, error)
}

// Partitioner partitions one Markdown document.
type Partitioner interface {
	Partition(ctx context.Context, source []byte) (*document.Extraction, error)
}

// Summarizer produces index-aligned summaries.
type Summarizer interface {
	Summarize(ctx context.Context, tables, texts []string) (*summarize.Result, error)
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs       int
	Tables          int
	Texts           int
	SummaryFailures []summarize.Failure
	Build           *index.BuildStats
	Duration        time.Duration
}

// Indexed returns the number of elements that reached the index.
func (r *IndexResult) Indexed() int {
	if r.Build == nil {
		return 0
	}
	return r.Build.Indexed
}

// Skipped returns the number of extracted elements that were not indexed.
func (r *IndexResult) Skipped() int {
	return r.Tables + r.Texts - r.Indexed()
}

// Pipeline orchestrates extraction, summarization and indexing.
type Pipeline struct {
	extractor   Extractor
	partitioner Partitioner
	summarizer  Summarizer
	embedder    index.Embedder
	indexOpts   []index.Option
	logger      *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
// A nil extractor restricts the pipeline to Markdown sources.
func NewPipeline(
	extractor Extractor,
	partitioner Partitioner,
	summarizer Summarizer,
	embedder index.Embedder,
	logger *slog.Logger,
	indexOpts ...index.Option,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:   extractor,
		partitioner: partitioner,
		summarizer:  summarizer,
		embedder:    embedder,
		indexOpts:   append(indexOpts, index.WithLogger(logger)),
		logger:      logger,
	}
}

// Index partitions, summarizes and indexes sources into vi and cs, and returns
// a retriever over them. Extraction failures are fatal; summary and embedding
// failures only skip the affected elements.
func (p *Pipeline) Index(ctx context.Context, vi index.VectorIndex, cs index.ContentStore, sources []Source) (*index.Retriever, *IndexResult, error) {
	if len(sources) == 0 {
		return nil, nil, ErrNoSources
	}
	start := time.Now()
	result := &IndexResult{TotalDocs: len(sources)}

	// 1. Partition
	parts, err := p.partition(ctx, sources)
	metrics.DocumentIngested(err)
	if err != nil {
		return nil, nil, err
	}
	result.Tables = len(parts.Tables)
	result.Texts = len(parts.Texts)
	p.logger.Info("Partitioned documents", "docs", len(sources), "tables", result.Tables, "texts", result.Texts)

	// 2. Summarize
	sctx, stage := metrics.StartStage(ctx, "summarize",
		attribute.Int("tables", result.Tables), attribute.Int("texts", result.Texts))
	summaries, err := p.summarizer.Summarize(sctx, parts.Tables, parts.Texts)
	stage.End(err)
	if err != nil {
		return nil, nil, fmt.Errorf("summarize: %w", err)
	}
	result.SummaryFailures = summaries.Failed
	for _, f := range summaries.Failed {
		p.logger.Warn("Skipped element without summary", "kind", f.Kind, "index", f.Index, "reason", f.Reason)
	}

	// 3. Build the index
	bctx, stage := metrics.StartStage(ctx, "index")
	retriever, stats, err := index.Build(bctx, vi, cs, p.embedder,
		summaries.TableSummaries, summaries.Tables,
		summaries.TextSummaries, summaries.Texts,
		p.indexOpts...)
	stage.End(err)
	if err != nil {
		return nil, nil, err
	}
	result.Build = stats
	result.Duration = time.Since(start)

	metrics.ElementsIndexed(string(document.KindTable), stats.TablesIndexed)
	metrics.ElementsIndexed(string(document.KindText), stats.Indexed-stats.TablesIndexed)
	metrics.ElementsSkipped(result.Skipped())

	p.logger.Info("Indexing complete",
		"indexed", result.Indexed(),
		"skipped", result.Skipped(),
		"duration", result.Duration,
	)
	return retriever, result, nil
}

// partition extracts every source. Markdown results come first, then PDF
// results, each group in input order.
func (p *Pipeline) partition(ctx context.Context, sources []Source) (*document.Extraction, error) {
	ctx, stage := metrics.StartStage(ctx, "extract", attribute.Int("documents", len(sources)))
	var err error
	defer func() { stage.End(err) }()

	var pdfs [][]byte
	merged := &document.Extraction{}
	for _, src := range sources {
		if !src.IsMarkdown() {
			pdfs = append(pdfs, src.Data)
			continue
		}
		var ext *document.Extraction
		ext, err = p.partitioner.Partition(ctx, src.Data)
		if err != nil {
			err = fmt.Errorf("partition %s: %w", src.Name, err)
			return nil, err
		}
		merged.Merge(ext)
	}

	if len(pdfs) > 0 {
		if p.extractor == nil {
			err = fmt.Errorf("extract %d PDF documents: %w", len(pdfs), extraction.ErrNotConfigured)
			return nil, err
		}
		var ext *document.Extraction
		ext, err = p.extractor.ExtractAll(ctx, pdfs)
		if err != nil {
			err = fmt.Errorf("extract: %w", err)
			return nil, err
		}
		merged.Merge(ext)
	}
	return merged, nil
}
