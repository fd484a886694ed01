// Package answer produces answers from retrieved document context: narrative
// answers through the chat model, arithmetic answers computed in code.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/llm"
)

// RefusalMessage is the fixed reply when the document has no relevant context.
const RefusalMessage = "The document doesn't contain context regarding the question."

var (
	// ErrNoComputation is returned when no operation or operands could be determined.
	ErrNoComputation = errors.New("could not compute an answer from the question and context")

	// ErrDivisionByZero is returned when the operation divides by a zero operand.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrEmptyAnswer is returned when the chat model replies with nothing.
	ErrEmptyAnswer = errors.New("empty answer from model")
)

// Completer sends one prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Turn is one question and its answer.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// formatContext renders elements verbatim, numbered in retrieval order.
func formatContext(elements []document.Element) string {
	var b strings.Builder
	for i, el := range elements {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s:\n%s", i+1, el.Kind, el.Content)
	}
	return b.String()
}

// isRefusal reports whether a model reply is a variant of the refusal sentence.
func isRefusal(s string) bool {
	lower := strings.ToLower(s)
	lower = strings.ReplaceAll(lower, "’", "'")
	for _, marker := range []string{
		"doesn't contain context regarding the question",
		"does not contain context regarding the question",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
