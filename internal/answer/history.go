package answer

import (
	"context"
	"sync"

	"github.com/bull/finchat/internal/document"
)

// History is an append-only, chronologically ordered list of turns.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn at the end.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Turns returns a copy of all turns, oldest first.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Conversation answers narrative questions with the session's prior turns as history.
type Conversation struct {
	engine  *SpanEngine
	history *History
}

// NewConversation creates a Conversation. A nil history starts empty.
func NewConversation(engine *SpanEngine, history *History) *Conversation {
	if history == nil {
		history = NewHistory()
	}
	return &Conversation{engine: engine, history: history}
}

// Ask answers the question and records the turn. Failed calls are not recorded.
func (c *Conversation) Ask(ctx context.Context, question string, elements []document.Element) (string, error) {
	answer, err := c.engine.Answer(ctx, question, elements, c.history.Turns())
	if err != nil {
		return "", err
	}
	c.history.Append(Turn{Question: question, Answer: answer})
	return answer, nil
}

// History returns the conversation's history.
func (c *Conversation) History() *History {
	return c.history
}
