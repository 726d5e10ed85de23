package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/code-explainer/internal/explain"
	"github.com/bull/code-explainer/internal/knowledge"
)

// Engine is the explanation backend behind the tools.
type Engine interface {
	Explain(ctx context.Context, code, languageHint string) *explain.Result
	Ingest(ctx context.Context, req explain.IngestRequest) (int, error)
	Stats() explain.Stats
}

// Searcher runs similarity queries against the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error)
}

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. Mirror is optional.
type Config struct {
	Engine   Engine
	Searcher Searcher
	Mirror   HealthChecker
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "code-explainer",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "explain_code",
		Description: "Explain a Python, C or C++ snippet: summary, reasoning trace, an explanation per line, and similar examples from the knowledge base.",
	}, makeExplainHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_example",
		Description: "Add a labeled code example to the knowledge base. The example is persisted and used as retrieval context for later explanations.",
	}, makeIngestHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_examples",
		Description: "Semantic search over the knowledge base examples.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "knowledge_status",
		Description: "Report knowledge base size, examples per language, the embedding model and mirror connectivity.",
	}, makeStatusHandler(cfg.Engine, cfg.Mirror))

	return &Server{server: server}
}

// Run serves over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
