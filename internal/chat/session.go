// Package chat ties the build and query phases to chat sessions: each session
// owns its index and its conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bull/finchat/internal/answer"
	"github.com/bull/finchat/internal/classify"
	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/index"
	"github.com/bull/finchat/internal/indexer"
	"github.com/bull/finchat/internal/metrics"
)

// DefaultTimeout bounds one request across extraction, summarization,
// indexing and answering.
const DefaultTimeout = 5 * time.Minute

// User-facing messages for failed questions. None of them equals
// answer.RefusalMessage.
const (
	MsgNoDocument    = "Please upload a document before asking questions."
	MsgUnavailable   = "The answer service is unavailable right now. Please try again."
	MsgTimeout       = "The request took too long to complete. Please try again."
	MsgNoComputation = "The calculation could not be completed from the document."
)

// ErrNoDocument is returned when a session has nothing indexed yet.
var ErrNoDocument = errors.New("no document indexed for this session")

// ReplyKind classifies a Reply.
type ReplyKind string

const (
	ReplyAnswer  ReplyKind = "answer"
	ReplyRefusal ReplyKind = "refusal"
	ReplyError   ReplyKind = "error"
)

// Reply is the outcome of one question. Text is always safe to show to the user.
type Reply struct {
	Text       string                   `json:"text"`
	Kind       ReplyKind                `json:"kind"`
	Route      classify.Label           `json:"route,omitempty"`
	Arithmetic *answer.ArithmeticResult `json:"arithmetic,omitempty"`
	Highlights []string                 `json:"highlights,omitempty"`
	Err        error                    `json:"-"`
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Pipeline   *indexer.Pipeline
	Backend    Backend
	Classifier classify.Classifier
	Span       *answer.SpanEngine
	Arithmetic *answer.ArithmeticEngine
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (d *Deps) validate() error {
	switch {
	case d.Pipeline == nil:
		return errors.New("chat: pipeline is required")
	case d.Span == nil:
		return errors.New("chat: span engine is required")
	case d.Arithmetic == nil:
		return errors.New("chat: arithmetic engine is required")
	}
	if d.Backend == nil {
		d.Backend = MemoryBackend{}
	}
	if d.Classifier == nil {
		d.Classifier = classify.NewFallback(nil, d.Logger)
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return nil
}

// Session is one chat over one or more ingested documents. Requests within a
// session run one at a time.
type Session struct {
	id      string
	created time.Time
	deps    *Deps
	logger  *slog.Logger

	mu        sync.Mutex
	vi        index.VectorIndex
	cs        index.ContentStore
	retriever *index.Retriever
	conv      *answer.Conversation
	documents []string
	indexed   int
}

func newSession(id string, deps *Deps) *Session {
	return &Session{
		id:      id,
		created: time.Now(),
		deps:    deps,
		logger:  deps.Logger.With("session", id),
		conv:    answer.NewConversation(deps.Span, nil),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Ingest indexes sources into the session. Documents accumulate: later
// questions retrieve from everything ingested so far.
func (s *Session) Ingest(ctx context.Context, sources []indexer.Source) (*indexer.IndexResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingest(ctx, sources)
}

// Ask answers one question. It never returns an error: failures are reported
// in the Reply.
func (s *Session) Ask(ctx context.Context, question string) Reply {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ask(ctx, question)
}

// IngestAndAsk indexes sources and answers question under one deadline.
func (s *Session) IngestAndAsk(ctx context.Context, sources []indexer.Source, question string) (*indexer.IndexResult, Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.ingest(ctx, sources)
	if err != nil {
		return nil, Reply{}, err
	}
	return result, s.ask(ctx, question), nil
}

func (s *Session) ingest(ctx context.Context, sources []indexer.Source) (*indexer.IndexResult, error) {
	if s.vi == nil {
		vi, cs, err := s.deps.Backend.Open(ctx, s.id)
		if err != nil {
			return nil, fmt.Errorf("open session stores: %w", err)
		}
		s.vi, s.cs = vi, cs
	}

	retriever, result, err := s.deps.Pipeline.Index(ctx, s.vi, s.cs, sources)
	if err != nil {
		return nil, err
	}
	s.retriever = retriever
	s.indexed += result.Indexed()
	for _, src := range sources {
		s.documents = append(s.documents, src.Name)
	}
	s.logger.Info("Ingested documents", "docs", len(sources), "indexed", result.Indexed())
	return result, nil
}

func (s *Session) ask(ctx context.Context, question string) (reply Reply) {
	ctx, stage := metrics.StartStage(ctx, "answer", attribute.String("session", s.id))
	defer func() {
		stage.End(reply.Err)
		metrics.QuestionAnswered(string(reply.Route), string(reply.Kind))
	}()

	if s.retriever == nil {
		return Reply{Text: MsgNoDocument, Kind: ReplyError, Err: ErrNoDocument}
	}

	route, err := s.deps.Classifier.Classify(ctx, question)
	if err != nil {
		return s.failure("", fmt.Errorf("classify: %w", err), MsgUnavailable)
	}
	stage.Event("classified", attribute.String("route", string(route)))

	elements, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return s.failure(route, fmt.Errorf("retrieve: %w", err), MsgUnavailable)
	}

	if len(elements) == 0 || route != classify.LabelArithmetic {
		return s.answerSpan(ctx, route, question, elements)
	}
	return s.answerArithmetic(ctx, route, question, elements)
}

func (s *Session) answerSpan(ctx context.Context, route classify.Label, question string, elements []document.Element) Reply {
	text, err := s.conv.Ask(ctx, question, elements)
	if err != nil {
		return s.failure(route, err, MsgUnavailable)
	}
	if text == answer.RefusalMessage {
		return Reply{Text: text, Kind: ReplyRefusal, Route: route}
	}
	return Reply{Text: text, Kind: ReplyAnswer, Route: route, Highlights: answer.Highlights(text)}
}

func (s *Session) answerArithmetic(ctx context.Context, route classify.Label, question string, elements []document.Element) Reply {
	res, err := s.deps.Arithmetic.Answer(ctx, question, elements)
	if err != nil {
		msg := MsgUnavailable
		if errors.Is(err, answer.ErrNoComputation) || errors.Is(err, answer.ErrDivisionByZero) {
			msg = MsgNoComputation
		}
		return s.failure(route, err, msg)
	}
	text := res.Markdown()
	s.conv.History().Append(answer.Turn{Question: question, Answer: text})
	return Reply{Text: text, Kind: ReplyAnswer, Route: route, Arithmetic: res, Highlights: []string{res.Answer}}
}

// failure logs err and converts it into an error Reply.
func (s *Session) failure(route classify.Label, err error, msg string) Reply {
	if errors.Is(err, context.DeadlineExceeded) {
		msg = MsgTimeout
	}
	s.logger.Warn("Question failed", "route", route, "error", err)
	return Reply{Text: msg, Kind: ReplyError, Route: route, Err: err}
}

// History returns the session's turns, oldest first.
func (s *Session) History() []answer.Turn {
	return s.conv.History().Turns()
}

// Info summarizes a session.
type Info struct {
	ID        string    `json:"id"`
	Created   time.Time `json:"created"`
	Documents []string  `json:"documents"`
	Indexed   int       `json:"indexed"`
	Turns     int       `json:"turns"`
}

// Info returns a snapshot of the session's state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		Created:   s.created,
		Documents: append([]string(nil), s.documents...),
		Indexed:   s.indexed,
		Turns:     s.conv.History().Len(),
	}
}
