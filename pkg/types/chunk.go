package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// ChunkType represents the strategy that produced a chunk
type ChunkType string

const (
	ChunkFunction     ChunkType = "function"
	ChunkClass        ChunkType = "class"
	ChunkFunctionPart ChunkType = "function_part"
	ChunkText         ChunkType = "text_chunk"
	ChunkFullFile     ChunkType = "full_file"
	ChunkFullForm     ChunkType = "full_form"
	ChunkPartialForm  ChunkType = "partial_form"
	ChunkContinuation ChunkType = "continuation"
	ChunkMixed        ChunkType = "mixed"
)

// Valid reports whether t is a recognized chunk type
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkFunction, ChunkClass, ChunkFunctionPart, ChunkText, ChunkFullFile,
		ChunkFullForm, ChunkPartialForm, ChunkContinuation, ChunkMixed:
		return true
	default:
		return false
	}
}

// IsPart reports whether chunks of this type are pieces of a larger unit
func (t ChunkType) IsPart() bool {
	return t == ChunkFunctionPart || t == ChunkText || t == ChunkPartialForm
}

// Chunk is a contiguous region of source text sized for embedding and retrieval
type Chunk struct {
	// Identification (set by storage)
	ID     int64
	FileID int64

	// Content
	Content     string
	ContentHash [32]byte
	TokenCount  int

	// Location (1-based lines, 0 when unknown)
	LineNumber int
	StartLine  int
	EndLine    int

	// Metadata
	Type        ChunkType
	EntityName  string
	EntityKind  EntityKind
	PartIndex   int
	TotalParts  int
	Oversized   bool
	SectionType string
	Sections    []string

	// Source file context
	FilePath string
	FileName string
	FileType string
}

// ChunkMetadata is the serialized form of a chunk's metadata.
// Field order is fixed so the rendered trailer is deterministic.
type ChunkMetadata struct {
	ChunkType   ChunkType  `json:"chunkType"`
	EntityName  string     `json:"entityName,omitempty"`
	EntityKind  EntityKind `json:"entityKind,omitempty"`
	LineNumber  int        `json:"lineNumber,omitempty"`
	StartLine   int        `json:"startLine,omitempty"`
	EndLine     int        `json:"endLine,omitempty"`
	PartIndex   int        `json:"partIndex,omitempty"`
	TotalParts  int        `json:"totalParts,omitempty"`
	TokenCount  int        `json:"tokenCount"`
	Oversized   bool       `json:"oversized,omitempty"`
	SectionType string     `json:"sectionType,omitempty"`
	Sections    []string   `json:"sections,omitempty"`
	FilePath    string     `json:"filePath,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	FileType    string     `json:"fileType,omitempty"`
}

// Metadata returns the chunk metadata record
func (c *Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{
		ChunkType:   c.Type,
		EntityName:  c.EntityName,
		EntityKind:  c.EntityKind,
		LineNumber:  c.LineNumber,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		PartIndex:   c.PartIndex,
		TotalParts:  c.TotalParts,
		TokenCount:  c.TokenCount,
		Oversized:   c.Oversized,
		SectionType: c.SectionType,
		Sections:    c.Sections,
		FilePath:    c.FilePath,
		FileName:    c.FileName,
		FileType:    c.FileType,
	}
}

// MetadataJSON renders the metadata as indented JSON
func (c *Chunk) MetadataJSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Metadata()); err != nil {
		return "", fmt.Errorf("failed to encode chunk metadata: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// MetadataMarker separates chunk content from its metadata trailer
const MetadataMarker = "\n\n[Metadata]\n"

// FormatForIngestion renders content followed by the metadata trailer,
// the form consumed by plain-text RAG ingestion.
func (c *Chunk) FormatForIngestion() (string, error) {
	meta, err := c.MetadataJSON()
	if err != nil {
		return "", err
	}
	return c.Content + MetadataMarker + meta, nil
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs validation of the chunk
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChunkType, c.Type)
	}
	if c.StartLine < 0 || c.EndLine < 0 || (c.EndLine > 0 && c.StartLine > c.EndLine) {
		return ErrInvalidLine
	}
	if c.Type.IsPart() && (c.PartIndex < 1 || c.PartIndex > c.TotalParts) {
		return fmt.Errorf("part index %d outside 1..%d", c.PartIndex, c.TotalParts)
	}
	return nil
}

// KnowledgeGraph is the payload handed to a RAG ingestion sink
type KnowledgeGraph struct {
	Source        string // file label the graph was extracted from
	Chunks        []Chunk
	Entities      []Entity
	Relationships []Relationship
}

// Empty reports whether the graph carries nothing to ingest
func (kg *KnowledgeGraph) Empty() bool {
	return len(kg.Chunks) == 0 && len(kg.Entities) == 0 && len(kg.Relationships) == 0
}
