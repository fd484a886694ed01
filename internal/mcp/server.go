package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/finchat/internal/chat"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server   *mcp.Server
	sessions *chat.Manager
}

// Config holds server dependencies. Loader may be nil to accept inline content only.
type Config struct {
	Sessions *chat.Manager
	Loader   SourceLoader
	Version  string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "finchat",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Index a financial document (PDF or Markdown) into a chat session. Pass a path inside the server's documents directory, a github:owner/repo/path reference, or base64 content. Returns the session id and indexing statistics.",
	}, makeIngestHandler(cfg.Sessions, cfg.Loader))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_question",
		Description: "Ask a question about the documents of a session. Narrative questions are answered from retrieved context; calculations are computed from the document's figures.",
	}, makeAskHandler(cfg.Sessions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_history",
		Description: "Return the questions and answers of a session, oldest first.",
	}, makeHistoryHandler(cfg.Sessions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List open chat sessions with their documents and turn counts.",
	}, makeListHandler(cfg.Sessions))

	return &Server{server: server, sessions: cfg.Sessions}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
