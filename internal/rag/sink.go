package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/delphirag/pkg/types"
)

// Sink accepts knowledge graphs for ingestion
type Sink interface {
	// InsertKnowledgeGraph ingests the chunks, entities and relationships of
	// one source file. Re-inserting the same source replaces its content
	// where the backend supports it.
	InsertKnowledgeGraph(ctx context.Context, kg *types.KnowledgeGraph) error

	// Name identifies the sink in logs and errors
	Name() string
}

// Querier answers natural language questions over ingested content
type Querier interface {
	Query(ctx context.Context, question, mode string) (string, error)
}

// Query modes understood by LightRAG
const (
	ModeNaive  = "naive"
	ModeLocal  = "local"
	ModeGlobal = "global"
	ModeHybrid = "hybrid"
	ModeMix    = "mix"
)

// ErrInvalidMode is returned for an unknown query mode
var ErrInvalidMode = errors.New("invalid query mode")

// ValidateMode checks a query mode, accepting "" as the default
func ValidateMode(mode string) error {
	switch mode {
	case "", ModeNaive, ModeLocal, ModeGlobal, ModeHybrid, ModeMix:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// Documents renders every chunk of kg in ingestion form
func Documents(kg *types.KnowledgeGraph) ([]string, error) {
	docs := make([]string, 0, len(kg.Chunks))
	for i := range kg.Chunks {
		text, err := kg.Chunks[i].FormatForIngestion()
		if err != nil {
			return nil, fmt.Errorf("failed to format chunk %d of %s: %w", i, kg.Source, err)
		}
		docs = append(docs, text)
	}
	return docs, nil
}

// MultiSink delivers each graph to every wrapped sink
type MultiSink []Sink

// InsertKnowledgeGraph calls every sink, even after a failure, and joins the errors
func (m MultiSink) InsertKnowledgeGraph(ctx context.Context, kg *types.KnowledgeGraph) error {
	var errs []error
	for _, s := range m {
		if err := s.InsertKnowledgeGraph(ctx, kg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name returns "multi"
func (m MultiSink) Name() string {
	return "multi"
}
