package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/finchat/internal/chat"
	"github.com/bull/finchat/internal/indexer"
)

// SourceLoader resolves a document reference to indexable sources.
type SourceLoader interface {
	Load(ctx context.Context, ref string) ([]indexer.Source, error)
}

// makeIngestHandler creates the ingest_document tool handler.
// Ingest flow:
// 1. Resolve the document from the path or inline base64 content
// 2. Find or create the session
// 3. Extract, summarize and index into the session
func makeIngestHandler(sessions *chat.Manager, loader SourceLoader) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		sources, err := resolveSources(ctx, loader, input)
		if err != nil {
			return nil, IngestDocumentOutput{}, err
		}

		var session *chat.Session
		if input.SessionID == "" {
			session = sessions.Create()
		} else {
			session, _ = sessions.GetOrCreate(input.SessionID)
		}

		result, err := session.Ingest(ctx, sources)
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingest failed: %w", err)
		}

		names := make([]string, len(sources))
		for i, src := range sources {
			names[i] = src.Name
		}
		return nil, IngestDocumentOutput{
			SessionID:       session.ID(),
			Documents:       names,
			Tables:          result.Tables,
			Texts:           result.Texts,
			Indexed:         result.Indexed(),
			Skipped:         result.Skipped(),
			DurationSeconds: result.Duration.Seconds(),
		}, nil
	}
}

func resolveSources(ctx context.Context, loader SourceLoader, input IngestDocumentInput) ([]indexer.Source, error) {
	switch {
	case input.Path != "" && input.ContentBase64 != "":
		return nil, errors.New("set either path or content_base64, not both")

	case input.Path != "":
		if loader == nil {
			return nil, errors.New("path sources are disabled on this server")
		}
		return loader.Load(ctx, input.Path)

	case input.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input.ContentBase64))
		if err != nil {
			return nil, fmt.Errorf("invalid content_base64: %w", err)
		}
		name := input.Name
		if name == "" {
			name = "document.pdf"
		}
		return []indexer.Source{{Name: name, Data: data}}, nil
	}
	return nil, errors.New("path or content_base64 is required")
}

// makeAskHandler creates the ask_question tool handler.
// Failures to answer are reported in the output, not as tool errors.
func makeAskHandler(sessions *chat.Manager) func(
	context.Context, *mcp.CallToolRequest, AskQuestionInput,
) (*mcp.CallToolResult, AskQuestionOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskQuestionInput) (
		*mcp.CallToolResult, AskQuestionOutput, error,
	) {
		if strings.TrimSpace(input.Question) == "" {
			return nil, AskQuestionOutput{}, errors.New("question is required")
		}
		session, err := sessions.Get(input.SessionID)
		if err != nil {
			return nil, AskQuestionOutput{}, err
		}

		reply := session.Ask(ctx, input.Question)
		return nil, AskQuestionOutput{
			SessionID:  session.ID(),
			Answer:     reply.Text,
			Kind:       string(reply.Kind),
			Route:      string(reply.Route),
			Highlights: reply.Highlights,
			Arithmetic: reply.Arithmetic,
		}, nil
	}
}

// makeHistoryHandler creates the get_history tool handler.
func makeHistoryHandler(sessions *chat.Manager) func(
	context.Context, *mcp.CallToolRequest, GetHistoryInput,
) (*mcp.CallToolResult, GetHistoryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetHistoryInput) (
		*mcp.CallToolResult, GetHistoryOutput, error,
	) {
		session, err := sessions.Get(input.SessionID)
		if err != nil {
			return nil, GetHistoryOutput{}, err
		}
		turns := session.History()
		return nil, GetHistoryOutput{
			SessionID: session.ID(),
			Turns:     turns,
			Count:     len(turns),
		}, nil
	}
}

// makeListHandler creates the list_sessions tool handler.
func makeListHandler(sessions *chat.Manager) func(
	context.Context, *mcp.CallToolRequest, ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSessionsInput) (
		*mcp.CallToolResult, ListSessionsOutput, error,
	) {
		infos := sessions.List()
		return nil, ListSessionsOutput{Sessions: infos, Count: len(infos)}, nil
	}
}
