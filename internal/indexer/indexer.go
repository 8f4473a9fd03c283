package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/delphirag/internal/chunker"
	"github.com/dshills/delphirag/internal/classifier"
	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/parser"
	"github.com/dshills/delphirag/internal/progress"
	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/storage"
	"github.com/dshills/delphirag/pkg/types"
)

// ErrIndexingInProgress is returned when a run is already active
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Indexer coordinates the ingestion pipeline:
// discover -> classify -> parse -> chunk -> store -> sink -> embed
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	storage  storage.Storage
	sink     rag.Sink
	embedder embedder.Embedder
	progress *progress.Store
	log      logrus.FieldLogger
	lock     IndexLock
}

// Options wires the collaborators of an Indexer. Storage is required;
// the rest are optional.
type Options struct {
	Parser   *parser.Parser // nil chunks every file without structure
	Chunker  *chunker.Chunker
	Storage  storage.Storage
	Sink     rag.Sink
	Embedder embedder.Embedder
	Progress *progress.Store
	Logger   logrus.FieldLogger
}

// Config contains configuration for one indexing run
type Config struct {
	Workers    int      // Concurrent file workers (default: runtime.NumCPU())
	BatchSize  int      // Files committed per transaction (default: 20)
	Force      bool     // Reprocess files whose content is unchanged
	Resume     bool     // Skip files the progress store already holds
	Reset      bool     // Clear the progress store and reprocess every file
	Embed      bool     // Generate embeddings for new chunks
	Extensions []string // File extensions to ingest (default: .pas, .dfm)
	Exclude    []string // Glob patterns relative to the root
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID          string
	TotalFiles     int
	Processed      int
	Skipped        int
	Failed         int
	AutoGenerated  int
	ParseFallbacks int
	Removed        int
	Chunks         int
	Entities       int
	Relationships  int
	Embedded       int
	Duration       time.Duration
	ErrorMessages  []string
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *Config {
	return &Config{
		Workers:   runtime.NumCPU(),
		BatchSize: 20,
		Resume:    true,
	}
}

const embedBatchSize = embedder.DefaultBatchSize

// New creates a new Indexer instance
func New(opts Options) *Indexer {
	if opts.Chunker == nil {
		opts.Chunker = chunker.New(nil, chunker.DefaultConfig())
	}
	if opts.Parser == nil {
		opts.Parser = parser.New(nil, parser.Config{Grammar: parser.PascalGrammar()})
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Indexer{
		parser:   opts.Parser,
		chunker:  opts.Chunker,
		storage:  opts.Storage,
		sink:     opts.Sink,
		embedder: opts.Embedder,
		progress: opts.Progress,
		log:      opts.Logger.WithField("component", "indexer"),
	}
}

// Busy reports whether an indexing run is active
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}

// IndexProject ingests every Delphi source under rootPath. One file's failure
// never stops the run; it is counted and reported in Statistics.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	startTime := time.Now()
	stats := &Statistics{RunID: uuid.NewString(), ErrorMessages: make([]string, 0)}
	log := idx.log.WithFields(logrus.Fields{"run": stats.RunID, "root": absRoot})

	project, err := idx.getOrCreateProject(ctx, absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	files, err := classifier.Discover(absRoot, classifier.DiscoverOptions{
		Extensions: config.Extensions,
		Exclude:    config.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.TotalFiles = len(files)

	run := &storage.Run{
		ID:         stats.RunID,
		ProjectID:  project.ID,
		Status:     storage.RunRunning,
		FilesTotal: len(files),
		StartedAt:  startTime,
	}
	if err := idx.storage.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	if err := idx.prepareProgress(config, len(files)); err != nil {
		return nil, err
	}

	log.WithField("files", len(files)).Info("indexing started")

	runErr := idx.run(ctx, project, files, config, stats)
	if runErr == nil {
		stats.Removed, runErr = idx.pruneMissing(ctx, project, files)
	}
	if runErr == nil && config.Embed && idx.embedder != nil {
		stats.Embedded, runErr = idx.embedPending(ctx, project.ID)
	}
	if runErr == nil {
		runErr = idx.updateProjectStats(ctx, project)
	}

	stats.Duration = time.Since(startTime)
	idx.finishRun(run, stats, runErr)

	if runErr != nil {
		return stats, runErr
	}

	log.WithFields(logrus.Fields{
		"processed":      stats.Processed,
		"skipped":        stats.Skipped,
		"failed":         stats.Failed,
		"auto_generated": stats.AutoGenerated,
		"chunks":         stats.Chunks,
		"duration":       stats.Duration,
	}).Info("indexing finished")
	return stats, nil
}

func (idx *Indexer) prepareProgress(config *Config, total int) error {
	if idx.progress == nil {
		return nil
	}
	if config.Reset {
		if err := idx.progress.Reset(); err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
	}
	if err := idx.progress.SetTotal(total); err != nil {
		return fmt.Errorf("failed to record total: %w", err)
	}
	return nil
}

// run processes files batch by batch. Files of a batch are read, parsed and
// chunked concurrently, then written in one transaction.
func (idx *Indexer) run(ctx context.Context, project *storage.Project, files []string, config *Config, stats *Statistics) error {
	for start := 0; start < len(files); start += config.BatchSize {
		end := min(start+config.BatchSize, len(files))
		batch := files[start:end]

		outcomes := make([]*fileOutcome, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(config.Workers)
		for i, path := range batch {
			g.Go(func() error {
				outcomes[i] = idx.prepareFile(gctx, project, path, config)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := idx.commitBatch(ctx, project, outcomes); err != nil {
			return err
		}
		idx.deliver(ctx, outcomes)
		idx.record(outcomes, stats)
	}
	return ctx.Err()
}

// commitBatch writes the prepared files of a batch in one transaction. If a
// file fails to store, the batch is rolled back and its files are written
// one transaction each so only the failing file is lost.
func (idx *Indexer) commitBatch(ctx context.Context, project *storage.Project, outcomes []*fileOutcome) error {
	pending := make([]*fileOutcome, 0, len(outcomes))
	for _, out := range outcomes {
		if out.status == statusProcessed || out.status == statusAutoGenerated {
			pending = append(pending, out)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	err := idx.inTx(ctx, func(tx storage.Tx) error {
		for _, out := range pending {
			if err := storeFile(ctx, tx, project, out); err != nil {
				return fmt.Errorf("%s: %w", out.relPath, err)
			}
		}
		return nil
	})
	if err == nil || ctx.Err() != nil {
		return err
	}

	idx.log.WithError(err).Debug("batch write failed, retrying files individually")
	for _, out := range pending {
		err := idx.inTx(ctx, func(tx storage.Tx) error {
			return storeFile(ctx, tx, project, out)
		})
		if err != nil {
			out.fail(fmt.Errorf("failed to store: %w", err))
		}
	}
	return ctx.Err()
}

func (idx *Indexer) inTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// deliver hands each stored file's graph to the sink and marks the files
// the sink accepted. Files with nothing to send count as accepted.
func (idx *Indexer) deliver(ctx context.Context, outcomes []*fileOutcome) {
	if idx.sink == nil {
		return
	}
	for _, out := range outcomes {
		if out.status != statusProcessed && out.status != statusAutoGenerated {
			continue
		}
		if out.graph != nil && !out.graph.Empty() {
			if err := idx.sink.InsertKnowledgeGraph(ctx, out.graph); err != nil {
				out.fail(fmt.Errorf("%s sink: %w", idx.sink.Name(), err))
				continue
			}
		}
		if err := idx.storage.MarkDelivered(ctx, out.fileID); err != nil {
			idx.log.WithError(err).WithField("file", out.relPath).Warn("failed to record delivery")
		}
	}
}

// record folds outcomes into stats and the progress store
func (idx *Indexer) record(outcomes []*fileOutcome, stats *Statistics) {
	for _, out := range outcomes {
		switch out.status {
		case statusProcessed:
			stats.Processed++
			stats.Chunks += len(out.chunks)
			stats.Entities += len(out.entities)
			stats.Relationships += len(out.relationships)
			if out.fallback {
				stats.ParseFallbacks++
			}
		case statusAutoGenerated:
			stats.AutoGenerated++
		case statusSkipped:
			stats.Skipped++
		case statusFailed:
			stats.Failed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", out.relPath, out.err))
			idx.log.WithError(out.err).WithField("file", out.relPath).Warn("file failed")
			continue
		}

		if idx.progress == nil || out.status == statusSkipped {
			continue
		}
		err := idx.progress.MarkProcessed(progress.Record{
			Path:        out.relPath,
			ContentHash: fmt.Sprintf("%x", out.file.ContentHash),
			Chunks:      len(out.chunks),
			Skipped:     out.status == statusAutoGenerated,
		})
		if err != nil {
			idx.log.WithError(err).WithField("file", out.relPath).Warn("failed to record progress")
		}
	}
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		Name:         filepath.Base(rootPath),
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// pruneMissing deletes stored files that are no longer on disk
func (idx *Indexer) pruneMissing(ctx context.Context, project *storage.Project, files []string) (int, error) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		rel, err := relPath(project.RootPath, f)
		if err != nil {
			return 0, err
		}
		present[rel] = true
	}

	stored, err := idx.storage.ListFiles(ctx, project.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list files: %w", err)
	}

	removed := 0
	for _, f := range stored {
		if present[f.FilePath] {
			continue
		}
		if err := idx.storage.DeleteFile(ctx, f.ID); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", f.FilePath, err)
		}
		removed++
	}
	return removed, nil
}

// embedPending embeds every chunk of the project that lacks an embedding
func (idx *Indexer) embedPending(ctx context.Context, projectID int64) (int, error) {
	total := 0
	for {
		chunks, err := idx.storage.ListChunksWithoutEmbedding(ctx, projectID, embedBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list chunks: %w", err)
		}
		if len(chunks) == 0 {
			return total, nil
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return total, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(resp.Embeddings) != len(chunks) {
			return total, fmt.Errorf("embedder returned %d embeddings for %d chunks", len(resp.Embeddings), len(chunks))
		}

		for i, emb := range resp.Embeddings {
			err := idx.storage.UpsertEmbedding(ctx, &storage.Embedding{
				ChunkID:   chunks[i].ID,
				Vector:    storage.SerializeVector(emb.Vector),
				Dimension: emb.Dimension,
				Provider:  emb.Provider,
				Model:     emb.Model,
			})
			if err != nil {
				return total, fmt.Errorf("failed to store embedding: %w", err)
			}
		}
		total += len(chunks)
	}
}

// updateProjectStats updates the project's file and chunk counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}
	project.TotalFiles = status.FilesCount
	project.TotalChunks = status.ChunksCount
	project.LastIndexedAt = time.Now()
	return idx.storage.UpdateProject(ctx, project)
}

// finishRun records the outcome of a run. It uses a fresh context so a
// cancelled run is still recorded.
func (idx *Indexer) finishRun(run *storage.Run, stats *Statistics, runErr error) {
	run.Status = storage.RunCompleted
	if runErr != nil {
		run.Status = storage.RunFailed
		run.Error = runErr.Error()
	}
	run.Processed = stats.Processed
	run.Skipped = stats.Skipped
	run.Failed = stats.Failed
	run.AutoGenerated = stats.AutoGenerated
	run.Chunks = stats.Chunks
	run.FinishedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.storage.FinishRun(ctx, run); err != nil {
		idx.log.WithError(err).Warn("failed to record run result")
	}
}

// FileLabel is the label entity ids and chunk paths are built from: the
// slash-separated path relative to root, as IndexProject stores it. Files
// outside root, or with no root given, are labelled by their base name.
func FileLabel(root, path string) string {
	if root != "" {
		absRoot, rerr := filepath.Abs(root)
		absPath, perr := filepath.Abs(path)
		if rerr == nil && perr == nil {
			rel, err := relPath(absRoot, absPath)
			if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, "../") {
				return rel
			}
		}
	}
	return filepath.Base(path)
}

// AnalyzeFile parses one file of the project at root without storing anything
func (idx *Indexer) AnalyzeFile(ctx context.Context, root, path string) (*classifier.File, *types.ParseResult, error) {
	file, err := classifier.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if file.Type != classifier.FilePascal {
		return file, &types.ParseResult{}, nil
	}
	result, err := idx.parser.Parse(ctx, FileLabel(root, path), []byte(file.Text))
	if err != nil {
		return file, nil, err
	}
	return file, result, nil
}

// ChunkFile chunks one file the way IndexProject would, without storing it
func (idx *Indexer) ChunkFile(ctx context.Context, root, path string) ([]types.Chunk, error) {
	file, err := classifier.ReadFile(path)
	if err != nil {
		return nil, err
	}
	label := FileLabel(root, path)
	chunks, _, _ := idx.chunkFile(ctx, file, label)
	annotate(chunks, label, file)
	return chunks, nil
}
