// Package mcp exposes finchat sessions as Model Context Protocol tools.
package mcp

import (
	"github.com/bull/finchat/internal/answer"
	"github.com/bull/finchat/internal/chat"
)

// IngestDocumentInput defines the input parameters for the ingest_document tool.
// Exactly one of Path and ContentBase64 is set.
type IngestDocumentInput struct {
	// SessionID selects an existing session; a new one is created when empty.
	SessionID string `json:"session_id,omitempty" jsonschema:"session to add the document to; a new session is created when empty"`
	// Path is a path inside the server's documents directory or a
	// github:owner/repo/path[@branch] reference.
	Path string `json:"path,omitempty" jsonschema:"path relative to the server documents directory, or github:owner/repo/path reference of a PDF or Markdown report"`
	// ContentBase64 is the document itself.
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"base64-encoded document bytes"`
	// Name names inline content; its extension selects PDF or Markdown parsing.
	Name string `json:"name,omitempty" jsonschema:"file name of the inline document, e.g. report.pdf or notes.md"`
}

// IngestDocumentOutput reports what was indexed.
type IngestDocumentOutput struct {
	SessionID       string   `json:"session_id"`
	Documents       []string `json:"documents"`
	Tables          int      `json:"tables"`
	Texts           int      `json:"texts"`
	Indexed         int      `json:"indexed"`
	Skipped         int      `json:"skipped"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// AskQuestionInput defines the input parameters for the ask_question tool.
type AskQuestionInput struct {
	SessionID string `json:"session_id" jsonschema:"session returned by ingest_document"`
	Question  string `json:"question" jsonschema:"question about the ingested documents"`
}

// AskQuestionOutput contains the answer.
type AskQuestionOutput struct {
	SessionID string `json:"session_id"`
	// Answer is markdown with key figures in bold, the refusal sentence, or an error message.
	Answer string `json:"answer"`
	// Kind is answer, refusal or error.
	Kind       string                   `json:"kind"`
	Route      string                   `json:"route,omitempty"`
	Highlights []string                 `json:"highlights,omitempty"`
	Arithmetic *answer.ArithmeticResult `json:"arithmetic,omitempty"`
}

// GetHistoryInput defines the input parameters for the get_history tool.
type GetHistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"session whose conversation to return"`
}

// GetHistoryOutput contains a session's turns, oldest first.
type GetHistoryOutput struct {
	SessionID string        `json:"session_id"`
	Turns     []answer.Turn `json:"turns"`
	Count     int           `json:"count"`
}

// ListSessionsInput takes no parameters.
type ListSessionsInput struct{}

// ListSessionsOutput contains every open session.
type ListSessionsOutput struct {
	Sessions []chat.Info `json:"sessions"`
	Count    int         `json:"count"`
}
