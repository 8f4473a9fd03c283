package indexer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/parser"
	"github.com/dshills/delphirag/internal/progress"
	"github.com/dshills/delphirag/internal/storage"
	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/pkg/types"
)

const customerUnit = `unit Customer;
interface
type
  TCustomer = class
    procedure Load;
  end;
implementation
procedure TCustomer.Load;
begin
end;
end.`

const mainForm = `object MainForm: TMainForm
  Caption = 'Main'
end
`

// customerTree is the canonical tree for customerUnit
func customerTree() syntax.Tree {
	b := syntax.NewBuilder(customerUnit)
	root := b.Root("root",
		b.Lines("class_type", 4, 6,
			b.Text("identifier", "TCustomer", 4),
			b.Lines("procedure_declaration", 5, 5,
				b.Text("identifier", "Load", 5),
			),
		),
		b.Lines("procedure_declaration", 8, 10,
			b.Text("genericDot", "TCustomer.Load", 8,
				b.Text("identifier", "TCustomer", 8),
				b.Text(".", ".", 8),
				b.Text("identifier", "Load", 8),
			),
		),
	)
	return b.Tree(root)
}

// treeProvider returns a prepared tree for known sources and fails otherwise
type treeProvider struct {
	trees map[string]func() syntax.Tree
	calls atomic.Int32
}

func (p *treeProvider) Parse(_ context.Context, src []byte) (syntax.Tree, error) {
	p.calls.Add(1)
	build, ok := p.trees[string(src)]
	if !ok {
		return nil, errors.New("unsupported source")
	}
	return build(), nil
}

func (p *treeProvider) Close() {}

// panicProvider simulates a crashing native parser
type panicProvider struct{}

func (panicProvider) Parse(context.Context, []byte) (syntax.Tree, error) { panic("boom") }
func (panicProvider) Close()                                             {}

// recordingSink captures delivered graphs
type recordingSink struct {
	mu     sync.Mutex
	graphs []*types.KnowledgeGraph
	err    error
}

func (s *recordingSink) InsertKnowledgeGraph(_ context.Context, kg *types.KnowledgeGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.graphs = append(s.graphs, kg)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.graphs))
	for i, g := range s.graphs {
		out[i] = g.Source
	}
	return out
}

// mockEmbedder returns constant vectors
type mockEmbedder struct {
	mu    sync.Mutex
	err   error
	texts int
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(_ context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.texts += len(req.Texts)

	resp := &embedder.BatchEmbeddingResponse{Provider: "mock", Model: "mock-4"}
	for range req.Texts {
		resp.Embeddings = append(resp.Embeddings, &embedder.Embedding{
			Vector:    []float32{0.5, 0.5, 0.5, 0.5},
			Dimension: 4,
			Provider:  "mock",
			Model:     "mock-4",
		})
	}
	return resp, nil
}

func (m *mockEmbedder) Dimension() int   { return 4 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-4" }
func (m *mockEmbedder) Close() error     { return nil }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newProject writes a unit, a form and a generated unit
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "src/Customer.pas", customerUnit)
	writeFile(t, dir, "src/MainForm.dfm", mainForm)
	writeFile(t, dir, "src/Proxy.pas", "// This file is automatically generated\nunit Proxy;\nend.\n")
	return dir
}

func newIndexer(t *testing.T, store storage.Storage, opts Options) *Indexer {
	t.Helper()
	if opts.Parser == nil {
		provider := &treeProvider{trees: map[string]func() syntax.Tree{customerUnit: customerTree}}
		opts.Parser = parser.New(provider, parser.Config{Grammar: parser.CanonicalGrammar()})
	}
	opts.Storage = store
	opts.Logger = quietLogger()
	return New(opts)
}

func testConfig() *Config {
	return &Config{Workers: 2, BatchSize: 2, Resume: true}
}

func TestIndexProject(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{}
	idx := newIndexer(t, store, Options{Sink: sink})
	root := newProject(t)

	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.AutoGenerated)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.ParseFallbacks)
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)
	assert.Positive(t, stats.Chunks)
	assert.ElementsMatch(t, []string{"src/Customer.pas", "src/MainForm.dfm"}, sink.sources())

	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(absRoot), project.Name)
	assert.Equal(t, 3, project.TotalFiles)
	assert.Equal(t, stats.Chunks, project.TotalChunks)

	unit, err := store.GetFile(ctx, project.ID, "src/Customer.pas")
	require.NoError(t, err)
	assert.Equal(t, "pas", unit.FileType)
	assert.Nil(t, unit.ParseError)

	entities, err := store.ListEntitiesByFile(ctx, unit.ID)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "src/Customer.pas:TCustomer", entities[0].EntityID)

	generated, err := store.GetFile(ctx, project.ID, "src/Proxy.pas")
	require.NoError(t, err)
	assert.True(t, generated.AutoGenerated)
	chunks, err := store.ListChunksByFile(ctx, generated.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	run, err := store.LatestRun(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.RunID, run.ID)
	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Processed)
}

func TestIndexProject_FormChunks(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{}
	idx := newIndexer(t, store, Options{Sink: sink})
	root := t.TempDir()
	writeFile(t, root, "MainForm.dfm", mainForm)

	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Chunks)

	require.Len(t, sink.graphs, 1)
	graph := sink.graphs[0]
	assert.Empty(t, graph.Entities)
	require.Len(t, graph.Chunks, 1)
	assert.Equal(t, types.ChunkFullForm, graph.Chunks[0].Type)
	assert.Equal(t, "MainForm.dfm", graph.Chunks[0].FilePath)
	assert.Equal(t, "dfm", graph.Chunks[0].FileType)
}

func TestIndexProject_Incremental(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := newProject(t)

	first, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	second, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Equal(t, 3, second.Skipped)
	assert.NotEqual(t, first.RunID, second.RunID)

	writeFile(t, root, "src/MainForm.dfm", mainForm+"object Extra: TPanel\nend\n")
	third, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Processed)
	assert.Equal(t, 2, third.Skipped)
}

func TestIndexProject_Force(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := newProject(t)

	_, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)

	config := testConfig()
	config.Force = true
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.AutoGenerated)
	assert.Zero(t, stats.Skipped)

	// reprocessing replaces rows rather than duplicating them
	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	unit, err := store.GetFile(ctx, project.ID, "src/Customer.pas")
	require.NoError(t, err)
	entities, err := store.ListEntitiesByFile(ctx, unit.ID)
	require.NoError(t, err)
	assert.Len(t, entities, 3)
}

func TestIndexProject_ParseFallback(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{}
	// no syntax provider: every Pascal file falls back to text chunking
	idx := newIndexer(t, store, Options{
		Sink:   sink,
		Parser: parser.New(nil, parser.Config{Grammar: parser.PascalGrammar()}),
	})
	root := t.TempDir()
	writeFile(t, root, "Customer.pas", customerUnit)

	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.ParseFallbacks)
	assert.Zero(t, stats.Entities)

	require.Len(t, sink.graphs, 1)
	require.Len(t, sink.graphs[0].Chunks, 1)
	assert.Equal(t, types.ChunkFullFile, sink.graphs[0].Chunks[0].Type)
	assert.Equal(t, customerUnit, sink.graphs[0].Chunks[0].Content)

	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	file, err := store.GetFile(ctx, project.ID, "Customer.pas")
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
	assert.Contains(t, *file.ParseError, "no syntax provider")
}

func TestIndexProject_ParserPanic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{
		Parser: parser.New(panicProvider{}, parser.Config{Grammar: parser.CanonicalGrammar()}),
	})
	root := t.TempDir()
	writeFile(t, root, "Customer.pas", customerUnit)

	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.ParseFallbacks)
	assert.Equal(t, 1, stats.Chunks)
}

func TestIndexProject_SinkFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{err: errors.New("rag down")}

	prog, err := progress.Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Close() })

	idx := newIndexer(t, store, Options{Sink: sink, Progress: prog})
	root := t.TempDir()
	writeFile(t, root, "Customer.pas", customerUnit)

	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "rag down")

	done, err := prog.IsProcessed("Customer.pas")
	require.NoError(t, err)
	assert.False(t, done)

	// the file is retried once the sink recovers
	sink.err = nil
	stats, err = idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []string{"Customer.pas"}, sink.sources())

	done, err = prog.IsProcessed("Customer.pas")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestIndexProject_ResetProgress(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	prog, err := progress.Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Close() })

	idx := newIndexer(t, store, Options{Progress: prog})
	root := newProject(t)

	_, err = idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)

	snap, err := prog.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalFiles)
	assert.Len(t, snap.ProcessedFiles, 3)

	// the command line turns resume off together with reset
	config := testConfig()
	config.Reset = true
	config.Resume = false
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.AutoGenerated)
	assert.Zero(t, stats.Skipped)

	snap, err = prog.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.ProcessedFiles, 3)
}

func TestIndexProject_ResetRedelivers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{}
	idx := newIndexer(t, store, Options{Sink: sink})
	root := newProject(t)

	_, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	require.Len(t, sink.sources(), 2)

	config := testConfig()
	config.Reset = true
	config.Resume = false
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Len(t, sink.sources(), 4)
}

func TestIndexProject_SinkFailureWithoutProgress(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := &recordingSink{err: errors.New("rag down")}
	idx := newIndexer(t, store, Options{Sink: sink})
	root := t.TempDir()
	writeFile(t, root, "Customer.pas", customerUnit)

	config := testConfig()
	config.Resume = false
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	file, err := store.GetFile(ctx, project.ID, "Customer.pas")
	require.NoError(t, err)
	assert.False(t, file.Delivered)

	// an unchanged hash alone does not mark the file done
	sink.err = nil
	stats, err = idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []string{"Customer.pas"}, sink.sources())

	file, err = store.GetFile(ctx, project.ID, "Customer.pas")
	require.NoError(t, err)
	assert.True(t, file.Delivered)

	stats, err = idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, sink.sources(), 1)
}

func TestIndexProject_PrunesDeletedFiles(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := newProject(t)

	_, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "MainForm.dfm")))
	stats, err := idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	_, err = store.GetFile(ctx, project.ID, "src/MainForm.dfm")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 2, project.TotalFiles)
}

func TestIndexProject_Embed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	emb := &mockEmbedder{}
	idx := newIndexer(t, store, Options{Embedder: emb})
	root := newProject(t)

	config := testConfig()
	config.Embed = true
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, stats.Embedded)
	assert.Equal(t, stats.Chunks, emb.texts)

	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	pending, err := store.ListChunksWithoutEmbedding(ctx, project.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// nothing left to embed on the next run
	stats, err = idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Zero(t, stats.Embedded)
}

func TestIndexProject_EmbedFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{Embedder: &mockEmbedder{err: errors.New("quota exceeded")}})
	root := newProject(t)

	config := testConfig()
	config.Embed = true
	stats, err := idx.IndexProject(ctx, root, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Processed)

	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	run, err := store.LatestRun(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Contains(t, run.Error, "quota exceeded")
}

func TestIndexProject_Exclude(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := newProject(t)

	config := testConfig()
	config.Exclude = []string{"**/*.dfm"}
	stats, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.Processed)
}

func TestIndexProject_AlreadyRunning(t *testing.T) {
	idx := newIndexer(t, newStore(t), Options{})
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	assert.True(t, idx.Busy())
	_, err := idx.IndexProject(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}

func TestIndexProject_Cancelled(t *testing.T) {
	idx := newIndexer(t, newStore(t), Options{})
	root := newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.IndexProject(ctx, root, testConfig())
	require.Error(t, err)
	assert.False(t, idx.Busy())
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	var acquired atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
	assert.True(t, lock.Held())
	lock.Release()
	assert.False(t, lock.Held())
	assert.True(t, lock.TryAcquire())
}

func TestAnalyzeFile(t *testing.T) {
	idx := newIndexer(t, newStore(t), Options{})
	dir := t.TempDir()
	path := writeFile(t, dir, "Customer.pas", customerUnit)

	file, result, err := idx.AnalyzeFile(context.Background(), "", path)
	require.NoError(t, err)
	assert.Equal(t, "Customer.pas", file.Name())
	require.Len(t, result.Entities, 3)
	assert.Equal(t, "Customer.pas:TCustomer", result.Entities[0].ID)
	assert.NotEmpty(t, result.Outline)

	form := writeFile(t, dir, "MainForm.dfm", mainForm)
	_, result, err = idx.AnalyzeFile(context.Background(), "", form)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
}

func TestChunkFile(t *testing.T) {
	idx := newIndexer(t, newStore(t), Options{})
	path := writeFile(t, t.TempDir(), "Customer.pas", customerUnit)

	chunks, err := idx.ChunkFile(context.Background(), "", path)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "Customer.pas", c.FilePath)
		assert.Equal(t, "pas", c.FileType)
		assert.NoError(t, c.Validate())
	}
}

func TestAnalyzeFile_LabelsMatchIndex(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := newProject(t)
	path := filepath.Join(root, "src", "Customer.pas")

	_, result, err := idx.AnalyzeFile(ctx, root, path)
	require.NoError(t, err)
	require.Len(t, result.Entities, 3)

	_, err = idx.IndexProject(ctx, root, testConfig())
	require.NoError(t, err)
	absRoot, _ := filepath.Abs(root)
	project, err := store.GetProject(ctx, absRoot)
	require.NoError(t, err)
	file, err := store.GetFile(ctx, project.ID, "src/Customer.pas")
	require.NoError(t, err)
	stored, err := store.ListEntitiesByFile(ctx, file.ID)
	require.NoError(t, err)

	var storedIDs []string
	for _, e := range stored {
		storedIDs = append(storedIDs, e.EntityID)
	}
	var analyzedIDs []string
	for _, e := range result.Entities {
		analyzedIDs = append(analyzedIDs, e.ID)
	}
	assert.ElementsMatch(t, storedIDs, analyzedIDs)

	chunks, err := idx.ChunkFile(ctx, root, path)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "src/Customer.pas", chunks[0].FilePath)
}

func TestFileLabel(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "src/Unit1.pas", FileLabel(root, filepath.Join(root, "src", "Unit1.pas")))
	assert.Equal(t, "Unit1.pas", FileLabel("", filepath.Join(root, "src", "Unit1.pas")))
	assert.Equal(t, "Other.pas", FileLabel(filepath.Join(root, "src"), filepath.Join(root, "lib", "Other.pas")))
}

func TestChunkFile_Missing(t *testing.T) {
	idx := newIndexer(t, newStore(t), Options{})
	_, err := idx.ChunkFile(context.Background(), "", filepath.Join(t.TempDir(), "missing.pas"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	store := newStore(t)
	idx := newIndexer(t, store, Options{})
	root := t.TempDir()

	runs := make(chan *Statistics, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- idx.Watch(ctx, root, testConfig(), WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnRun: func(stats *Statistics, err error) {
				if err == nil {
					runs <- stats
				}
			},
		})
	}()

	// give the watcher time to register the root
	time.Sleep(200 * time.Millisecond)
	writeFile(t, root, "Customer.pas", customerUnit)
	writeFile(t, root, "notes.txt", "ignored")

	select {
	case stats := <-runs:
		assert.Equal(t, 1, stats.TotalFiles)
		assert.Equal(t, 1, stats.Processed)
	case <-time.After(5 * time.Second):
		t.Fatal("no reindex after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
