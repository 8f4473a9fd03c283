package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/delphirag/internal/chunker"
	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/indexer"
	"github.com/dshills/delphirag/internal/parser"
	"github.com/dshills/delphirag/internal/progress"
	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/searcher"
	"github.com/dshills/delphirag/internal/storage"
	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/internal/syntax/treesitter"
	"github.com/dshills/delphirag/internal/tokenizer"
)

// components selects what newApp builds beyond storage and the parser
type components struct {
	progress bool
	sinks    bool
	embedder bool
}

// app holds the wired pipeline of one command invocation
type app struct {
	store    *storage.SQLiteStorage
	progress *progress.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	querier  rag.Querier
	lightrag *rag.LightRAGClient

	closers []func()
}

func newApp(ctx context.Context, want components) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	p, err := newParser()
	if err != nil {
		return nil, err
	}
	c := newChunker()

	opts := indexer.Options{
		Parser:  p,
		Chunker: c,
		Storage: store,
		Logger:  logger,
	}

	if want.progress && cfg.Database.ProgressPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.ProgressPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create progress directory: %w", err)
		}
		ps, err := progress.Open(cfg.Database.ProgressPath)
		if err != nil {
			return nil, err
		}
		a.progress = ps
		opts.Progress = ps
		a.closers = append(a.closers, func() { _ = ps.Close() })
	}

	if want.sinks {
		sink, err := a.newSink(ctx)
		if err != nil {
			return nil, err
		}
		opts.Sink = sink
	}

	var emb embedder.Embedder
	if want.embedder {
		emb, err = embedder.New(ctx, cfg.EmbedderConfig())
		if err != nil {
			// search degrades to keyword and indexing skips vectors
			logger.WithError(err).Warn("Embedder unavailable, continuing without embeddings")
			emb = nil
		} else {
			opts.Embedder = emb
			a.closers = append(a.closers, func() { _ = emb.Close() })
		}
	}

	a.indexer = indexer.New(opts)
	a.searcher = searcher.NewSearcher(store, emb)
	ok = true
	return a, nil
}

// newParser loads the tree-sitter grammar. Without it every file is chunked
// by the text fallback, so a missing grammar is a warning, not an error.
func newParser() (*parser.Parser, error) {
	pcfg, err := cfg.ParserConfig()
	if err != nil {
		return nil, err
	}

	var provider syntax.Parser
	loader := treesitter.NewLoader(treesitter.WithTrustedDir(cfg.Parser.LibraryDir))
	lang, err := loader.Load(cfg.Parser.Language)
	if err != nil {
		logger.WithError(err).WithField("grammar", cfg.Parser.Language).
			Warn("Tree-sitter grammar unavailable, using text chunking")
	} else if provider, err = treesitter.NewParser(lang); err != nil {
		return nil, err
	}
	return parser.New(provider, pcfg), nil
}

var loadTokenizer = tokenizer.NewWithFallback

// newChunker never fails: without an encoding the counter estimates
func newChunker() *chunker.Chunker {
	tok, err := loadTokenizer(cfg.Chunking.TokenModel)
	if err != nil {
		logger.WithError(err).WithField("model", cfg.Chunking.TokenModel).
			Warn("Token encoding unavailable, estimating token counts")
	}
	return chunker.New(tok, cfg.ChunkerConfig())
}

// newSink builds the RAG sinks enabled in the config. nil means no sink.
func (a *app) newSink(ctx context.Context) (rag.Sink, error) {
	var sinks rag.MultiSink

	if cfg.LightRAG.Enabled {
		client := rag.NewLightRAGClient(rag.LightRAGOptions{
			BaseURL:           cfg.LightRAG.URL,
			APIKey:            cfg.LightRAG.APIKey,
			BatchSize:         cfg.LightRAG.BatchSize,
			RequestsPerSecond: cfg.LightRAG.RequestsPerSecond,
			Logger:            logger,
		})
		a.lightrag = client
		a.querier = client
		sinks = append(sinks, client)
	}

	if cfg.Neo4j.Enabled {
		neo, err := rag.NewNeo4jSink(ctx, rag.Neo4jOptions{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = neo.Close(context.Background()) })
		sinks = append(sinks, neo)
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// indexConfig builds the base run configuration from the config file
func indexConfig() indexer.Config {
	return indexer.Config{
		Workers:    cfg.Indexer.Workers,
		BatchSize:  cfg.Indexer.BatchSize,
		Resume:     true,
		Embed:      true,
		Extensions: cfg.Indexer.Extensions,
		Exclude:    cfg.Indexer.Exclude,
	}
}
