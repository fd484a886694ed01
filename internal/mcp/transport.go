package mcp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the Streamable HTTP endpoint.
type HTTPHandlerOptions struct {
	// Stateless serves every request from a fresh MCP session. FinChat
	// sessions are addressed by session_id, so tools work either way.
	Stateless bool
	Logger    *slog.Logger
}

// NewHTTPHandler serves the FinChat tools over Streamable HTTP. Mount it at /mcp
// next to /health and /metrics.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: opts.Stateless})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		logger.Debug("MCP request", "method", r.Method, "remote", r.RemoteAddr, "duration", time.Since(start))
	})
}
