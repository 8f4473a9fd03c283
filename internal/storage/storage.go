package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dshills/delphirag/pkg/types"
)

// Storage defines the interface for persisting ingested Delphi sources
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	GetProjectByID(ctx context.Context, projectID int64) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	GetFileByID(ctx context.Context, fileID int64) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)
	MarkDelivered(ctx context.Context, fileID int64) error

	// Entity operations
	UpsertEntity(ctx context.Context, entity *Entity) error
	ListEntitiesByFile(ctx context.Context, fileID int64) ([]*Entity, error)
	DeleteEntitiesByFile(ctx context.Context, fileID int64) error
	FindEntities(ctx context.Context, projectID int64, name string, limit int) ([]*Entity, error)

	// Relationship operations
	InsertRelationship(ctx context.Context, rel *Relationship) error
	ListRelationshipsByFile(ctx context.Context, fileID int64) ([]*Relationship, error)
	DeleteRelationshipsByFile(ctx context.Context, fileID int64) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error)
	ListChunksWithoutEmbedding(ctx context.Context, projectID int64, limit int) ([]*Chunk, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, projectID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, projectID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Ingestion run operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	LatestRun(ctx context.Context, projectID int64) (*Run, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Project represents an ingested Delphi source tree
type Project struct {
	ID            int64
	RootPath      string
	Name          string
	TotalFiles    int
	TotalChunks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked .pas or .dfm file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	FileType      string
	Encoding      string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	SizeCategory  string
	AutoGenerated bool
	ParseError    *string // Nullable
	Delivered     bool    // Accepted by the RAG sinks; cleared on every upsert
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entity is a persisted definition extracted from a file
type Entity struct {
	ID          int64
	FileID      int64
	EntityID    string // label:name
	Kind        string
	Name        string
	SourceLine  int
	EndLine     int
	Description string
	Excerpt     string
	SourceTag   string
	CreatedAt   time.Time
}

// Relationship is a persisted membership edge
type Relationship struct {
	ID          int64
	FileID      int64
	SourceID    string
	TargetID    string
	Description string
	Keywords    string
	Weight      float64
	SourceTag   string
	CreatedAt   time.Time
}

// Chunk represents a stored chunk of source text
type Chunk struct {
	ID          int64
	FileID      int64
	Ordinal     int // position within the file's chunk sequence
	Content     string
	ContentHash [32]byte
	TokenCount  int
	LineNumber  int
	StartLine   int
	EndLine     int
	ChunkType   string
	EntityName  string
	EntityKind  string
	PartIndex   int
	TotalParts  int
	Oversized   bool
	SectionType string
	Sections    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Run status values
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run records one ingestion pass over a project
type Run struct {
	ID            string // uuid
	ProjectID     int64
	Status        string
	FilesTotal    int
	Processed     int
	Skipped       int
	Failed        int
	AutoGenerated int
	Chunks        int
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	ChunkTypes   []string // Filter by chunk type
	EntityKinds  []string // Filter by entity kind
	FileTypes    []string // pas, dfm
	FilePattern  string   // Glob pattern for file paths
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64
}

// ProjectStatus contains statistics about an ingested project
type ProjectStatus struct {
	Project            *Project
	FilesCount         int
	AutoGeneratedCount int
	EntitiesCount      int
	RelationshipsCount int
	ChunksCount        int
	EmbeddingsCount    int
	IndexSizeMB        float64
	LastIndexedAt      time.Time
	LastRun            *Run
	Health             HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}

// FromTypesEntity converts an extracted entity to its storage form
func FromTypesEntity(e types.Entity, fileID int64) *Entity {
	return &Entity{
		FileID:      fileID,
		EntityID:    e.ID,
		Kind:        string(e.Kind),
		Name:        e.Name,
		SourceLine:  e.SourceLine,
		EndLine:     e.EndLine,
		Description: e.Description,
		Excerpt:     e.Excerpt,
		SourceTag:   e.SourceID,
	}
}

// ToTypesEntity converts a stored entity back to its extracted form
func (e *Entity) ToTypesEntity(sourceFile string) types.Entity {
	return types.Entity{
		ID:          e.EntityID,
		Kind:        types.EntityKind(e.Kind),
		Name:        e.Name,
		SourceFile:  sourceFile,
		SourceLine:  e.SourceLine,
		EndLine:     e.EndLine,
		Description: e.Description,
		Excerpt:     e.Excerpt,
		SourceID:    e.SourceTag,
	}
}

// FromTypesRelationship converts an extracted relationship to its storage form
func FromTypesRelationship(r types.Relationship, fileID int64) *Relationship {
	return &Relationship{
		FileID:      fileID,
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		Description: r.Description,
		Keywords:    r.Keywords,
		Weight:      r.Weight,
		SourceTag:   r.SourceLocation,
	}
}

// FromTypesChunk converts a chunk to its storage form
func FromTypesChunk(c types.Chunk, fileID int64, ordinal int) *Chunk {
	return &Chunk{
		FileID:      fileID,
		Ordinal:     ordinal,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		LineNumber:  c.LineNumber,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		ChunkType:   string(c.Type),
		EntityName:  c.EntityName,
		EntityKind:  string(c.EntityKind),
		PartIndex:   c.PartIndex,
		TotalParts:  c.TotalParts,
		Oversized:   c.Oversized,
		SectionType: c.SectionType,
		Sections:    c.Sections,
	}
}

// ToTypesChunk converts a stored chunk back to a types.Chunk
func (c *Chunk) ToTypesChunk() types.Chunk {
	return types.Chunk{
		ID:          c.ID,
		FileID:      c.FileID,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		LineNumber:  c.LineNumber,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		Type:        types.ChunkType(c.ChunkType),
		EntityName:  c.EntityName,
		EntityKind:  types.EntityKind(c.EntityKind),
		PartIndex:   c.PartIndex,
		TotalParts:  c.TotalParts,
		Oversized:   c.Oversized,
		SectionType: c.SectionType,
		Sections:    c.Sections,
	}
}

func encodeSections(sections []string) (string, error) {
	if len(sections) == 0 {
		return "", nil
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSections(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var sections []string
	if err := json.Unmarshal([]byte(raw), &sections); err != nil {
		return nil, err
	}
	return sections, nil
}
