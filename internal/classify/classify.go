// Package classify routes a question to span or arithmetic answering.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Label is the answering route for a question.
type Label string

const (
	LabelArithmetic Label = "arithmetic"
	LabelSpan       Label = "span"
)

// ErrUnknownLabel is returned when a classifier output is not a known label.
var ErrUnknownLabel = errors.New("unknown classifier label")

// Classifier labels a question.
type Classifier interface {
	Classify(ctx context.Context, question string) (Label, error)
}

// ParseLabel maps a classifier output to a Label. Hosted models report
// "Arithmetic"/"Span" or the raw "LABEL_0"/"LABEL_1" class names.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arithmetic", "label_0", "0":
		return LabelArithmetic, nil
	case "span", "label_1", "1":
		return LabelSpan, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

var arithmeticRe = regexp.MustCompile(`(?i)\b(percent(age)?|increase[ds]?|decrease[ds]?|total|sum|average|mean|difference|ratio|growth|grew|margin|calculate|compute)\b|%|how\s+much\b.*\b(change[ds]?|more|less)\b`)

// KeywordClassifier labels questions with a keyword heuristic.
type KeywordClassifier struct{}

// Classify never fails.
func (KeywordClassifier) Classify(_ context.Context, question string) (Label, error) {
	if arithmeticRe.MatchString(question) {
		return LabelArithmetic, nil
	}
	return LabelSpan, nil
}

// Fallback tries the primary classifier and falls back to keywords when it fails.
type Fallback struct {
	primary Classifier
	logger  *slog.Logger
}

// NewFallback wraps primary. A nil primary classifies by keywords only.
func NewFallback(primary Classifier, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, logger: logger}
}

func (f *Fallback) Classify(ctx context.Context, question string) (Label, error) {
	if f.primary != nil {
		label, err := f.primary.Classify(ctx, question)
		if err == nil {
			return label, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger.Warn("classifier unavailable, using keyword routing", "error", err)
	}
	return KeywordClassifier{}.Classify(ctx, question)
}

// New returns the classifier for endpoint: the hosted model with keyword
// fallback when endpoint is set, keywords alone otherwise.
func New(endpoint string, opts ...Option) Classifier {
	cfg := options{}
	for _, o := range opts {
		o(&cfg)
	}
	if endpoint == "" {
		return NewFallback(nil, cfg.logger)
	}
	return NewFallback(NewHTTPClassifier(endpoint, cfg.timeout), cfg.logger)
}
