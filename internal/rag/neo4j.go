package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/dshills/delphirag/pkg/types"
)

// Neo4jOptions configures a Neo4jSink
type Neo4jOptions struct {
	URI      string
	Username string
	Password string
	Database string // defaults to "neo4j"
	Logger   logrus.FieldLogger
}

// Neo4jSink writes knowledge graphs into Neo4j. Each file is written in one
// transaction that replaces the file's previous chunks.
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
	log      logrus.FieldLogger
}

// NewNeo4jSink connects to Neo4j and verifies connectivity
func NewNeo4jSink(ctx context.Context, opts Neo4jOptions) (*Neo4jSink, error) {
	if opts.URI == "" || opts.Username == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%q user=%q", opts.URI, opts.Username)
	}
	if opts.Database == "" {
		opts.Database = "neo4j"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI,
		neo4j.BasicAuth(opts.Username, opts.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 10
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", opts.URI, err)
	}

	sink := &Neo4jSink{
		driver:   driver,
		database: opts.Database,
		log:      opts.Logger.WithField("component", "neo4j"),
	}
	if err := sink.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return sink, nil
}

// Name returns "neo4j"
func (s *Neo4jSink) Name() string {
	return "neo4j"
}

// Close closes the driver
func (s *Neo4jSink) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return nil
}

var constraintQueries = []string{
	`CREATE CONSTRAINT delphi_file_path IF NOT EXISTS FOR (f:File) REQUIRE f.path IS UNIQUE`,
	`CREATE CONSTRAINT delphi_entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
}

func (s *Neo4jSink) ensureConstraints(ctx context.Context) error {
	for _, q := range constraintQueries {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, q, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

const (
	mergeFileQuery = `
		MERGE (f:File {path: $path})
		SET f.updated_at = timestamp()
	`
	dropChunksQuery = `
		MATCH (:File {path: $path})-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE c
	`
	dropEntitiesQuery = `
		MATCH (:File {path: $path})-[:DEFINES]->(e:Entity)
		DETACH DELETE e
	`
	mergeEntitiesQuery = `
		UNWIND $entities AS e
		MATCH (f:File {path: $path})
		MERGE (n:Entity {id: e.id})
		SET n += e
		MERGE (f)-[:DEFINES]->(n)
	`
	mergeRelationshipsQuery = `
		UNWIND $relationships AS r
		MATCH (a:Entity {id: r.source})
		MATCH (b:Entity {id: r.target})
		MERGE (a)-[m:HAS_MEMBER]->(b)
		SET m.description = r.description, m.keywords = r.keywords,
		    m.weight = r.weight, m.source_location = r.source_location
	`
	createChunksQuery = `
		UNWIND $chunks AS c
		MATCH (f:File {path: $path})
		CREATE (f)-[:HAS_CHUNK]->(n:Chunk)
		SET n = c
	`
)

// writeQueries replace everything a file contributed: its chunks and
// entities, with their HAS_MEMBER edges, are dropped before the merge
var writeQueries = []string{
	mergeFileQuery,
	dropChunksQuery,
	dropEntitiesQuery,
	mergeEntitiesQuery,
	mergeRelationshipsQuery,
	createChunksQuery,
}

// InsertKnowledgeGraph writes kg in a single write transaction
func (s *Neo4jSink) InsertKnowledgeGraph(ctx context.Context, kg *types.KnowledgeGraph) error {
	if kg == nil || kg.Empty() {
		return nil
	}
	params := graphParams(kg)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range writeQueries {
			if _, err := tx.Run(ctx, q, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s to neo4j: %w", kg.Source, err)
	}

	s.log.WithFields(logrus.Fields{
		"source":        kg.Source,
		"entities":      len(kg.Entities),
		"relationships": len(kg.Relationships),
		"chunks":        len(kg.Chunks),
	}).Debug("wrote knowledge graph")
	return nil
}

// graphParams flattens kg into Cypher parameters of driver-supported types
func graphParams(kg *types.KnowledgeGraph) map[string]any {
	entities := make([]map[string]any, len(kg.Entities))
	for i, e := range kg.Entities {
		entities[i] = map[string]any{
			"id":          e.ID,
			"kind":        string(e.Kind),
			"name":        e.Name,
			"source_line": int64(e.SourceLine),
			"end_line":    int64(e.EndLine),
			"description": e.Description,
			"excerpt":     e.Excerpt,
			"source_id":   e.SourceID,
		}
	}

	relationships := make([]map[string]any, len(kg.Relationships))
	for i, r := range kg.Relationships {
		relationships[i] = map[string]any{
			"source":          r.SourceID,
			"target":          r.TargetID,
			"description":     r.Description,
			"keywords":        r.Keywords,
			"weight":          r.Weight,
			"source_location": r.SourceLocation,
		}
	}

	chunks := make([]map[string]any, len(kg.Chunks))
	for i, c := range kg.Chunks {
		sections := c.Sections
		if sections == nil {
			sections = []string{}
		}
		chunks[i] = map[string]any{
			"ordinal":      int64(i),
			"content":      c.Content,
			"chunk_type":   string(c.Type),
			"entity_name":  c.EntityName,
			"entity_kind":  string(c.EntityKind),
			"start_line":   int64(c.StartLine),
			"end_line":     int64(c.EndLine),
			"token_count":  int64(c.TokenCount),
			"part_index":   int64(c.PartIndex),
			"total_parts":  int64(c.TotalParts),
			"oversized":    c.Oversized,
			"section_type": c.SectionType,
			"sections":     sections,
		}
	}

	return map[string]any{
		"path":          kg.Source,
		"entities":      entities,
		"relationships": relationships,
		"chunks":        chunks,
	}
}
