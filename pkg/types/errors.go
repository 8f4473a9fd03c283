package types

import "errors"

// Domain errors for type validation
var (
	// Entity errors
	ErrInvalidEntityKind = errors.New("invalid entity kind")
	ErrEmptyEntityName   = errors.New("entity name cannot be empty")
	ErrInvalidLine       = errors.New("line numbers must be positive and ordered")

	// Chunk errors
	ErrInvalidChunkType = errors.New("invalid chunk type")
	ErrEmptyContent     = errors.New("content cannot be empty")

	// Search result errors
	ErrInvalidChunkID        = errors.New("chunk id must be positive")
	ErrInvalidRank           = errors.New("rank must be at least 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrMissingFileInfo       = errors.New("file info is required")

	// Pipeline errors
	ErrParseFailure         = errors.New("parse failure")
	ErrTokenizerUnavailable = errors.New("tokenizer encoding unavailable")
)
