package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/finchat/internal/answer"
	"github.com/bull/finchat/internal/classify"
	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/index"
	"github.com/bull/finchat/internal/indexer"
	"github.com/bull/finchat/internal/llm"
	"github.com/bull/finchat/internal/markdown"
	"github.com/bull/finchat/internal/summarize"
)

// fakeLLM answers summary, arithmetic and span prompts differently.
type fakeLLM struct {
	mu          sync.Mutex
	spanReply   string
	spanErr     error
	arithReply  string
	block       bool
	spanPrompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	switch {
	case strings.HasPrefix(req.User, "Give a concise summary"):
		lines := strings.Split(req.User, "\n")
		return "summary: " + lines[len(lines)-1], nil
	case strings.Contains(req.User, "Reply with exactly these four lines"):
		return f.arithReply, nil
	}

	f.mu.Lock()
	f.spanPrompts = append(f.spanPrompts, req.User)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.spanErr != nil {
		return "", f.spanErr
	}
	return f.spanReply, nil
}

func (f *fakeLLM) spanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spanPrompts)
}

type vocabEmbedder struct{}

var vocab = []string{"revenue", "income", "grew"}

func (vocabEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(vocab)+1)
		vec[len(vocab)] = 0.01
		for d, w := range vocab {
			vec[d] = float32(strings.Count(strings.ToLower(text), w))
		}
		out[i] = vec
	}
	return out, nil
}

type fakeExtractor struct {
	out *document.Extraction
}

func (f fakeExtractor) ExtractAll(context.Context, [][]byte) (*document.Extraction, error) {
	return f.out, nil
}

type fixedClassifier classify.Label

func (c fixedClassifier) Classify(context.Context, string) (classify.Label, error) {
	return classify.Label(c), nil
}

var scenario = &document.Extraction{
	Tables: []string{"<table><tr><td>Revenue</td><td>100</td></tr></table>"},
	Texts:  []string{"Net income grew significantly."},
}

func newManager(t *testing.T, m *fakeLLM, ext *document.Extraction, cls classify.Classifier, timeout time.Duration) *Manager {
	t.Helper()
	pipeline := indexer.NewPipeline(fakeExtractor{out: ext}, markdown.NewPartitioner(),
		summarize.New(m, summarize.Options{}, nil), vocabEmbedder{}, nil, index.WithTopK(1))
	mgr, err := NewManager(Deps{
		Pipeline:   pipeline,
		Classifier: cls,
		Span:       answer.NewSpanEngine(m, answer.SpanOptions{}),
		Arithmetic: answer.NewArithmeticEngine(m, nil),
		Timeout:    timeout,
	})
	require.NoError(t, err)
	return mgr
}

var pdf = []indexer.Source{{Name: "report.pdf", Data: []byte("%PDF")}}

func TestSession_SpanScenario(t *testing.T) {
	m := &fakeLLM{spanReply: "Revenue was **100**."}
	s := newManager(t, m, scenario, fixedClassifier(classify.LabelSpan), 0).Create()

	result, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed())

	reply := s.Ask(context.Background(), "What was the revenue?")
	require.NoError(t, reply.Err)
	assert.Equal(t, ReplyAnswer, reply.Kind)
	assert.Equal(t, classify.LabelSpan, reply.Route)
	assert.Equal(t, "Revenue was **100**.", reply.Text)
	assert.Equal(t, []string{"100"}, reply.Highlights)

	require.Equal(t, 1, m.spanCalls())
	assert.Contains(t, m.spanPrompts[0], "<td>Revenue</td>")
	assert.NotContains(t, m.spanPrompts[0], "Net income grew")

	assert.Equal(t, []answer.Turn{{Question: "What was the revenue?", Answer: "Revenue was **100**."}}, s.History())
}

func TestSession_ArithmeticScenario(t *testing.T) {
	m := &fakeLLM{arithReply: "no idea"}
	mgr := newManager(t, m, scenario, classify.NewFallback(nil, nil), 0)
	s := mgr.Create()

	q := "percentage increase in net income from 59972 to 73795"
	_, reply, err := s.IngestAndAsk(context.Background(), pdf, q)
	require.NoError(t, err)
	require.NoError(t, reply.Err)
	assert.Equal(t, classify.LabelArithmetic, reply.Route)
	assert.Equal(t, ReplyAnswer, reply.Kind)
	require.NotNil(t, reply.Arithmetic)
	assert.Equal(t, "23.05%", reply.Arithmetic.Answer)
	assert.Contains(t, reply.Text, "**23.05%**")
	assert.Equal(t, []string{"23.05%"}, reply.Highlights)

	again := s.Ask(context.Background(), q)
	assert.Equal(t, reply.Text, again.Text)
	assert.Len(t, s.History(), 2)
}

func TestSession_NoDocument(t *testing.T) {
	s := newManager(t, &fakeLLM{}, scenario, nil, 0).Create()

	reply := s.Ask(context.Background(), "What was the revenue?")
	assert.Equal(t, ReplyError, reply.Kind)
	assert.Equal(t, MsgNoDocument, reply.Text)
	assert.ErrorIs(t, reply.Err, ErrNoDocument)
}

func TestSession_EmptyRetrievalRefuses(t *testing.T) {
	m := &fakeLLM{spanReply: "made up"}
	s := newManager(t, m, &document.Extraction{}, fixedClassifier(classify.LabelArithmetic), 0).Create()

	_, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)

	reply := s.Ask(context.Background(), "What was the total revenue?")
	assert.Equal(t, ReplyRefusal, reply.Kind)
	assert.Equal(t, answer.RefusalMessage, reply.Text)
	assert.NoError(t, reply.Err)
	assert.Zero(t, m.spanCalls())
}

func TestSession_LLMFailure(t *testing.T) {
	m := &fakeLLM{spanErr: llm.ErrCompletionFailed}
	s := newManager(t, m, scenario, fixedClassifier(classify.LabelSpan), 0).Create()
	_, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)

	reply := s.Ask(context.Background(), "Who is the auditor?")
	assert.Equal(t, ReplyError, reply.Kind)
	assert.Equal(t, MsgUnavailable, reply.Text)
	assert.NotEqual(t, answer.RefusalMessage, reply.Text)
	assert.ErrorIs(t, reply.Err, llm.ErrCompletionFailed)
	assert.Empty(t, s.History())
}

func TestSession_ArithmeticFailure(t *testing.T) {
	m := &fakeLLM{arithReply: "cannot say"}
	ext := &document.Extraction{Texts: []string{"Revenue grew strongly."}}
	s := newManager(t, m, ext, fixedClassifier(classify.LabelArithmetic), 0).Create()
	_, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)

	reply := s.Ask(context.Background(), "What is the revenue ratio?")
	assert.Equal(t, ReplyError, reply.Kind)
	assert.Equal(t, MsgNoComputation, reply.Text)
	assert.ErrorIs(t, reply.Err, answer.ErrNoComputation)
}

func TestSession_Timeout(t *testing.T) {
	m := &fakeLLM{block: true}
	s := newManager(t, m, scenario, fixedClassifier(classify.LabelSpan), 100*time.Millisecond).Create()
	_, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)

	reply := s.Ask(context.Background(), "What was the revenue?")
	assert.Equal(t, ReplyError, reply.Kind)
	assert.Equal(t, MsgTimeout, reply.Text)
	assert.True(t, errors.Is(reply.Err, context.DeadlineExceeded))
}

func TestSession_DocumentsAccumulate(t *testing.T) {
	m := &fakeLLM{spanReply: "ok"}
	s := newManager(t, m, scenario, nil, 0).Create()

	_, err := s.Ingest(context.Background(), pdf)
	require.NoError(t, err)
	_, err = s.Ingest(context.Background(), []indexer.Source{{Name: "notes.md", Data: []byte("Revenue guidance was raised.")}})
	require.NoError(t, err)

	info := s.Info()
	assert.Equal(t, []string{"report.pdf", "notes.md"}, info.Documents)
	assert.Equal(t, 3, info.Indexed)
}
