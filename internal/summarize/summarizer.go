// Package summarize produces retrieval summaries for extracted tables and texts.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/llm"
)

const (
	// DefaultMaxTokens is the maximum element length before truncation (in tokens).
	DefaultMaxTokens = 4000

	// DefaultConcurrency bounds in-flight summary requests.
	DefaultConcurrency = 4
)

const systemPrompt = "You are an assistant tasked with summarizing tables and text from financial documents for retrieval."

// Completer sends one prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Failure records an element that could not be summarized.
type Failure struct {
	Kind   document.Kind
	Index  int
	Reason string
}

// Result holds index-aligned summaries: TableSummaries[i] describes Tables[i]
// and TextSummaries[i] describes Texts[i]. Failed elements appear in neither slice.
type Result struct {
	TableSummaries []string
	Tables         []string
	TextSummaries  []string
	Texts          []string
	Failed         []Failure
}

// Options configures a Summarizer.
type Options struct {
	Concurrency int
	MaxTokens   int
}

// Summarizer asks the chat model for one concise summary per element.
type Summarizer struct {
	llm         Completer
	concurrency int
	maxTokens   int
	logger      *slog.Logger
}

// New creates a Summarizer. A nil logger falls back to slog.Default().
func New(c Completer, opts Options, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Summarizer{
		llm:         c,
		concurrency: opts.Concurrency,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

// Summarize summarizes every table and text. Elements whose summary fails are
// dropped together with their content and listed in Result.Failed.
// The only error returned is context cancellation.
func (s *Summarizer) Summarize(ctx context.Context, tables, texts []string) (*Result, error) {
	tableSummaries, tableErrs := s.summarizeAll(ctx, document.KindTable, tables)
	textSummaries, textErrs := s.summarizeAll(ctx, document.KindText, texts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	res := &Result{}
	res.TableSummaries, res.Tables = s.keepSucceeded(res, document.KindTable, tables, tableSummaries, tableErrs)
	res.TextSummaries, res.Texts = s.keepSucceeded(res, document.KindText, texts, textSummaries, textErrs)
	return res, nil
}

// summarizeAll fans out over items and returns per-index summaries and errors.
func (s *Summarizer) summarizeAll(ctx context.Context, kind document.Kind, items []string) ([]string, []error) {
	summaries := make([]string, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, item := range items {
		g.Go(func() error {
			summaries[i], errs[i] = s.summarizeOne(ctx, kind, item)
			return nil
		})
	}
	_ = g.Wait()

	return summaries, errs
}

func (s *Summarizer) summarizeOne(ctx context.Context, kind document.Kind, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	summary, err := s.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        buildPrompt(kind, s.truncateContent(content)),
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

func (s *Summarizer) keepSucceeded(res *Result, kind document.Kind, items, summaries []string, errs []error) ([]string, []string) {
	var keptSummaries, keptItems []string
	for i := range items {
		if errs[i] != nil {
			s.logger.Warn("skipping element: summary failed",
				"kind", kind,
				"index", i,
				"error", errs[i],
			)
			res.Failed = append(res.Failed, Failure{Kind: kind, Index: i, Reason: errs[i].Error()})
			continue
		}
		keptSummaries = append(keptSummaries, summaries[i])
		keptItems = append(keptItems, items[i])
	}
	return keptSummaries, keptItems
}

func buildPrompt(kind document.Kind, content string) string {
	noun := "text"
	if kind == document.KindTable {
		noun = "table"
	}
	return fmt.Sprintf(`Give a concise summary of the %[1]s below. Keep every figure, period, and line item name that a reader might search for.

%[1]s:
%[2]s`, noun, content)
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (s *Summarizer) truncateContent(content string) string {
	maxChars := s.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	s.logger.Warn("truncating element",
		"from_chars", len(content),
		"to_chars", maxChars,
		"max_tokens", s.maxTokens,
	)
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
