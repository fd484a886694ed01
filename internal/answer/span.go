package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/llm"
)

const spanSystemPrompt = "You are a financial analyst who answers questions strictly from the supplied document context."

// SpanOptions configures a SpanEngine. Zero values select the defaults.
type SpanOptions struct {
	MinWords    int
	MaxWords    int
	Temperature float64
	MaxTokens   int
}

// SpanEngine answers narrative questions from retrieved context.
type SpanEngine struct {
	llm  Completer
	opts SpanOptions
}

// NewSpanEngine creates a SpanEngine.
func NewSpanEngine(c Completer, opts SpanOptions) *SpanEngine {
	if opts.MinWords <= 0 {
		opts.MinWords = 10
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = 200
	}
	if opts.MinWords > opts.MaxWords {
		opts.MinWords = opts.MaxWords
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 600
	}
	return &SpanEngine{llm: c, opts: opts}
}

// Answer returns a markdown answer grounded in context. Empty elements yield
// RefusalMessage without calling the model, and refusal-like replies are
// normalized to RefusalMessage.
func (e *SpanEngine) Answer(ctx context.Context, question string, elements []document.Element, history []Turn) (string, error) {
	if len(elements) == 0 {
		return RefusalMessage, nil
	}

	out, err := e.llm.Complete(ctx, llm.Request{
		System:      spanSystemPrompt,
		User:        e.buildPrompt(question, elements, history),
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("span answer: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("span answer: %w", ErrEmptyAnswer)
	}
	if isRefusal(out) {
		return RefusalMessage, nil
	}
	return out, nil
}

func (e *SpanEngine) buildPrompt(question string, elements []document.Element, history []Turn) string {
	var b strings.Builder

	b.WriteString("Conversation History:\n")
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", t.Question, t.Answer)
	}

	b.WriteString("\nDocument Context:\n")
	b.WriteString(formatContext(elements))
	b.WriteString("\n\nCurrent Question:\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `Answer the current question using only the document context and the conversation history.
The answer should be concise and clear, between %d and %d words depending on the complexity of the question.

Instructions:
- If the question refers to an earlier question, check the conversation history (especially the last question) before answering.
- Use financial terminology where the question calls for it.
- Highlight every critical number and percentage in **bold**.
- Preserve the numerical precision of the context. Do not infer relationships the context does not state.
- Do not add details that are not present in the document context.
- Use bullet points where they help.

If the answer cannot be produced from the context, reply with exactly: "%s"`,
		e.opts.MinWords, e.opts.MaxWords, RefusalMessage)

	return b.String()
}
