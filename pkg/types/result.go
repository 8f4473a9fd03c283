package types

import "fmt"

// SearchResult is one ranked chunk returned by a search
type SearchResult struct {
	ChunkID int64
	Rank    int // 1-based

	// RelevanceScore is normalized to [0, 1]
	RelevanceScore float64

	ChunkType  ChunkType
	EntityName string
	EntityKind EntityKind
	File       *FileInfo
	Content    string
}

// FileInfo locates a search result in its source file
type FileInfo struct {
	Path      string // slash-separated, relative to the project root
	StartLine int
	EndLine   int
}

// Validate checks the ranking fields and that the result points at a chunk
func (sr *SearchResult) Validate() error {
	if sr.ChunkID <= 0 {
		return ErrInvalidChunkID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}
	if !sr.ChunkType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChunkType, sr.ChunkType)
	}
	if sr.File == nil {
		return ErrMissingFileInfo
	}
	return nil
}

// Location renders the result position as path:start-end, or path alone
// when the line range is unknown
func (sr *SearchResult) Location() string {
	if sr.File == nil {
		return ""
	}
	if sr.File.StartLine == 0 {
		return sr.File.Path
	}
	return fmt.Sprintf("%s:%d-%d", sr.File.Path, sr.File.StartLine, sr.File.EndLine)
}
