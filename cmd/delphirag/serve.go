package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/mcp"
	"github.com/dshills/delphirag/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Expose index_delphi, analyze_file, search_chunks, query_rag and get_status
to MCP clients over stdin/stdout. Logs are written to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, components{progress: true, sinks: true, embedder: true})
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(mcp.Options{
		Storage:     a.store,
		Indexer:     a.indexer,
		Searcher:    a.searcher,
		Querier:     a.querier,
		Logger:      logger,
		Version:     Version,
		IndexConfig: indexConfig(),
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"db":      cfg.Database.Path,
		"driver":  storage.DriverName,
	}).Info("delphirag MCP server starting")
	return server.Serve(ctx)
}
