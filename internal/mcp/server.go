package mcp

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/dshills/delphirag/internal/indexer"
	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/searcher"
	"github.com/dshills/delphirag/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "delphirag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options wires the server to its collaborators. Storage, Indexer and
// Searcher are required; without a Querier the query_rag tool reports that
// no RAG backend is configured.
type Options struct {
	Storage  storage.Storage
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Querier  rag.Querier
	Logger   logrus.FieldLogger
	Version  string

	// IndexConfig is the base configuration of index_delphi runs
	IndexConfig indexer.Config
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	storage     storage.Storage
	indexer     *indexer.Indexer
	searcher    *searcher.Searcher
	querier     rag.Querier
	log         logrus.FieldLogger
	indexConfig indexer.Config
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Storage == nil || opts.Indexer == nil || opts.Searcher == nil {
		return nil, errors.New("storage, indexer and searcher are required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Version == "" {
		opts.Version = ServerVersion
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, opts.Version, server.WithToolCapabilities(false)),
		storage:     opts.Storage,
		indexer:     opts.Indexer,
		searcher:    opts.Searcher,
		querier:     opts.Querier,
		log:         opts.Logger.WithField("component", "mcp"),
		indexConfig: opts.IndexConfig,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the server on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("serving MCP on stdio")
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDelphiTool(), s.handleIndexDelphi)
	s.mcp.AddTool(analyzeFileTool(), s.handleAnalyzeFile)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(queryRAGTool(), s.handleQueryRAG)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
