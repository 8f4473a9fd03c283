package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dshills/delphirag/internal/classifier"
	"github.com/dshills/delphirag/internal/storage"
	"github.com/dshills/delphirag/pkg/types"
)

type fileStatus int

const (
	statusProcessed fileStatus = iota
	statusSkipped
	statusAutoGenerated
	statusFailed
)

// fileOutcome is the prepared result of one file, ready to be stored
type fileOutcome struct {
	path          string
	relPath       string
	fileID        int64
	status        fileStatus
	err           error
	file          *classifier.File
	parseError    string
	fallback      bool
	chunks        []types.Chunk
	entities      []types.Entity
	relationships []types.Relationship
	graph         *types.KnowledgeGraph
}

func (o *fileOutcome) fail(err error) {
	o.status = statusFailed
	o.err = err
}

// prepareFile reads, classifies, parses and chunks one file. It touches
// storage only to check whether the file changed.
func (idx *Indexer) prepareFile(ctx context.Context, project *storage.Project, path string, config *Config) *fileOutcome {
	out := &fileOutcome{path: path}

	rel, err := relPath(project.RootPath, path)
	if err != nil {
		out.fail(err)
		return out
	}
	out.relPath = rel

	file, err := classifier.ReadFile(path)
	if err != nil {
		out.fail(err)
		return out
	}
	out.file = file

	// a reset discards what earlier runs vouched for, so every file is redone
	if !config.Force && !config.Reset {
		unchanged, err := idx.unchanged(ctx, project.ID, rel, file.ContentHash, config.Resume)
		if err != nil {
			out.fail(err)
			return out
		}
		if unchanged {
			out.status = statusSkipped
			return out
		}
	}

	if file.AutoGenerated {
		out.status = statusAutoGenerated
		return out
	}

	chunks, result, parseErr := idx.chunkFile(ctx, file, rel)
	if parseErr != nil {
		out.parseError = parseErr.Error()
		out.fallback = true
	}
	annotate(chunks, rel, file)

	out.chunks = chunks
	if result != nil {
		out.entities = result.Entities
		out.relationships = result.Relationships
		if len(result.Errors) > 0 && out.parseError == "" {
			out.parseError = result.Errors[0].Message
		}
	}
	out.graph = &types.KnowledgeGraph{
		Source:        rel,
		Chunks:        out.chunks,
		Entities:      out.entities,
		Relationships: out.relationships,
	}
	out.status = statusProcessed
	return out
}

// unchanged reports whether the stored copy of rel has the same content
// hash, reached the sink when one is configured and, when resuming, is held
// by the progress store
func (idx *Indexer) unchanged(ctx context.Context, projectID int64, rel string, hash [32]byte, resume bool) (bool, error) {
	existing, err := idx.storage.GetFile(ctx, projectID, rel)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.ContentHash != hash {
		return false, nil
	}
	if idx.sink != nil && !existing.Delivered {
		return false, nil
	}
	if idx.progress == nil || !resume {
		return true, nil
	}
	return idx.progress.IsProcessed(rel)
}

// chunkFile picks the chunking for a file. Forms are chunked as forms,
// Pascal sources along their parsed structure. When parsing fails, or
// extraction or chunking panics, the file falls back to text chunking so
// its content is never dropped.
func (idx *Indexer) chunkFile(ctx context.Context, file *classifier.File, label string) (chunks []types.Chunk, result *types.ParseResult, parseErr error) {
	large := file.Category.IsLarge()

	if file.Type == classifier.FileForm {
		return idx.chunker.Form(file.Text), nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			parseErr = fmt.Errorf("%w: chunking panicked: %v", types.ErrParseFailure, r)
			result = nil
			chunks = idx.chunker.Fallback(file.Text, large)
		}
	}()

	result, err := idx.parser.Parse(ctx, label, []byte(file.Text))
	if err != nil {
		return idx.chunker.Fallback(file.Text, large), nil, err
	}
	return idx.chunker.Plan(file.Text, result, large), result, nil
}

// annotate attaches source file context to every chunk
func annotate(chunks []types.Chunk, rel string, file *classifier.File) {
	for i := range chunks {
		chunks[i].FilePath = rel
		chunks[i].FileName = file.Name()
		chunks[i].FileType = string(file.Type)
	}
}

// storeFile replaces everything stored for one file
func storeFile(ctx context.Context, store storage.Storage, project *storage.Project, out *fileOutcome) error {
	record := &storage.File{
		ProjectID:     project.ID,
		FilePath:      out.relPath,
		FileType:      string(out.file.Type),
		Encoding:      out.file.Encoding,
		ContentHash:   out.file.ContentHash,
		ModTime:       out.file.ModTime,
		SizeBytes:     out.file.Size,
		SizeCategory:  string(out.file.Category),
		AutoGenerated: out.status == statusAutoGenerated,
	}
	if out.parseError != "" {
		msg := out.parseError
		record.ParseError = &msg
	}
	if err := store.UpsertFile(ctx, record); err != nil {
		return err
	}
	out.fileID = record.ID

	if err := store.DeleteRelationshipsByFile(ctx, record.ID); err != nil {
		return err
	}
	if err := store.DeleteEntitiesByFile(ctx, record.ID); err != nil {
		return err
	}
	if err := store.DeleteChunksByFile(ctx, record.ID); err != nil {
		return err
	}

	for _, e := range out.entities {
		if err := store.UpsertEntity(ctx, storage.FromTypesEntity(e, record.ID)); err != nil {
			return fmt.Errorf("failed to store entity %s: %w", e.ID, err)
		}
	}
	for _, r := range out.relationships {
		if err := store.InsertRelationship(ctx, storage.FromTypesRelationship(r, record.ID)); err != nil {
			return fmt.Errorf("failed to store relationship: %w", err)
		}
	}
	for i, c := range out.chunks {
		if err := store.UpsertChunk(ctx, storage.FromTypesChunk(c, record.ID, i)); err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
	}
	return nil
}

// relPath returns path relative to root with forward slashes
func relPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
