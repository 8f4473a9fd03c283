package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/delphirag/internal/tokenizer"
	"github.com/dshills/delphirag/pkg/types"
)

// Anchor is the start of a definition to chunk around
type Anchor struct {
	Name    string
	Kind    types.EntityKind
	Line    int // 1-based
	EndLine int // 1-based, 0 when unknown
}

// AnchorsFromEntities converts extracted entities into anchors
func AnchorsFromEntities(entities []types.Entity) []Anchor {
	anchors := make([]Anchor, 0, len(entities))
	for _, e := range entities {
		anchors = append(anchors, Anchor{Name: e.Name, Kind: e.Kind, Line: e.SourceLine, EndLine: e.EndLine})
	}
	return anchors
}

// AnchorsFromOutline converts flat outline items into anchors
func AnchorsFromOutline(items []types.OutlineItem) []Anchor {
	anchors := make([]Anchor, 0, len(items))
	for _, it := range items {
		anchors = append(anchors, Anchor{Name: it.Name, Kind: it.Kind, Line: it.Line, EndLine: it.EndLine})
	}
	return anchors
}

// Chunker partitions source text into token-bounded chunks
type Chunker struct {
	tok tokenizer.Tokenizer
	cfg Config
}

// New creates a Chunker. A nil tokenizer counts with the fallback estimate.
func New(tok tokenizer.Tokenizer, cfg Config) *Chunker {
	if tok == nil {
		tok = tokenizer.Estimator()
	}
	return &Chunker{tok: tok, cfg: cfg.normalize()}
}

// Config returns the normalized configuration
func (c *Chunker) Config() Config {
	return c.cfg
}

// BuildChunks chunks text along entities, or as a whole file when there are none
func (c *Chunker) BuildChunks(text string, entities []types.Entity) []types.Chunk {
	if len(entities) == 0 {
		return c.WholeFile(text)
	}
	chunks := c.ByEntities(text, AnchorsFromEntities(entities))
	if len(chunks) == 0 {
		return c.WholeFile(text)
	}
	return chunks
}

// WholeFile emits text as one full_file chunk. Text over the token budget is
// split into text_chunk parts.
func (c *Chunker) WholeFile(text string) []types.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	count := c.tok.Count(text)
	if count <= c.cfg.MaxTokens {
		return finalize([]types.Chunk{{
			Content:    text,
			Type:       types.ChunkFullFile,
			TokenCount: count,
			StartLine:  1,
			EndLine:    lineCount(text),
		}})
	}
	return c.SplitTokens(text, types.ChunkText)
}

// SplitTokens splits text into overlapping parts tagged with chunkType
func (c *Chunker) SplitTokens(text string, chunkType types.ChunkType) []types.Chunk {
	pieces := c.split(text)
	chunks := make([]types.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, types.Chunk{
			Content:    p.text,
			Type:       chunkType,
			TokenCount: p.tokens,
			PartIndex:  i + 1,
			TotalParts: len(pieces),
			Oversized:  p.tokens > c.cfg.MaxTokens,
		})
	}
	return finalize(chunks)
}

// ByEntities emits one chunk per anchor spanning its inferred line range.
// Spans over the token budget become function_part chunks.
func (c *Chunker) ByEntities(text string, anchors []Anchor) []types.Chunk {
	lines := strings.Split(text, "\n")
	var chunks []types.Chunk
	for _, a := range anchors {
		if a.Line < 1 || a.Line > len(lines) {
			continue
		}
		start, end := c.inferRange(lines, a)
		chunks = append(chunks, c.spanChunks(lines, start, end, a, entityChunkType(a.Kind))...)
	}
	return finalize(chunks)
}

// Intelligent chunks routines by inferred range and classes up to their
// closing "end;", falling back to section chunking when neither yields a chunk
func (c *Chunker) Intelligent(text string, outline []types.OutlineItem) []types.Chunk {
	lines := strings.Split(text, "\n")
	var chunks []types.Chunk

	for _, a := range AnchorsFromOutline(outline) {
		if !a.Kind.IsRoutine() || a.Line < 1 || a.Line > len(lines) {
			continue
		}
		start, end := c.inferRange(lines, a)
		chunks = append(chunks, c.spanChunks(lines, start, end, a, types.ChunkFunction)...)
	}
	for _, a := range AnchorsFromOutline(outline) {
		if !a.Kind.IsContainer() || a.Line < 1 || a.Line > len(lines) {
			continue
		}
		start, end := classRange(lines, a.Line-1)
		chunks = append(chunks, c.spanChunks(lines, start, end, a, types.ChunkClass)...)
	}

	if len(chunks) == 0 {
		return c.BySection(text)
	}
	return finalize(chunks)
}

func (c *Chunker) spanChunks(lines []string, start, end int, a Anchor, chunkType types.ChunkType) []types.Chunk {
	content := strings.Join(lines[start:end], "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	count := c.tok.Count(content)
	if count <= c.cfg.MaxTokens {
		return []types.Chunk{{
			Content:    content,
			Type:       chunkType,
			EntityName: a.Name,
			EntityKind: a.Kind,
			LineNumber: a.Line,
			StartLine:  start + 1,
			EndLine:    end,
			TokenCount: count,
		}}
	}

	parts := c.SplitTokens(content, types.ChunkFunctionPart)
	for i := range parts {
		parts[i].EntityName = a.Name
		parts[i].EntityKind = a.Kind
		parts[i].LineNumber = a.Line
		parts[i].StartLine = start + 1
		parts[i].EndLine = end
	}
	return parts
}

// Simple emits a short summary chunk per routine and class of the outline,
// or the whole file when the outline is empty
func (c *Chunker) Simple(text string, outline []types.OutlineItem) []types.Chunk {
	var chunks []types.Chunk
	for _, it := range outline {
		if !it.Kind.IsRoutine() {
			continue
		}
		content := fmt.Sprintf("Function: %s\nType: %s\nLine: %d\n\n%s", it.Name, it.Kind, it.Line, it.Excerpt)
		chunks = append(chunks, c.summaryChunk(content, types.ChunkFunction, it))
	}
	for _, it := range outline {
		if !it.Kind.IsContainer() {
			continue
		}
		content := fmt.Sprintf("Class: %s\nLine: %d\n\n%s", it.Name, it.Line, it.Excerpt)
		chunks = append(chunks, c.summaryChunk(content, types.ChunkClass, it))
	}

	if len(chunks) == 0 {
		return c.WholeFile(text)
	}
	return finalize(chunks)
}

func (c *Chunker) summaryChunk(content string, chunkType types.ChunkType, it types.OutlineItem) types.Chunk {
	count := c.tok.Count(content)
	return types.Chunk{
		Content:    content,
		Type:       chunkType,
		EntityName: it.Name,
		EntityKind: it.Kind,
		LineNumber: it.Line,
		StartLine:  it.Line,
		EndLine:    max(it.Line, it.EndLine),
		TokenCount: count,
		Oversized:  count > c.cfg.MaxTokens,
	}
}

// Form chunks a .dfm form description
func (c *Chunker) Form(text string) []types.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	count := c.tok.Count(text)
	if count <= c.cfg.MaxTokens {
		return finalize([]types.Chunk{{
			Content:    text,
			Type:       types.ChunkFullForm,
			TokenCount: count,
			StartLine:  1,
			EndLine:    lineCount(text),
		}})
	}
	return c.SplitTokens(text, types.ChunkPartialForm)
}

var sectionKeyword = regexp.MustCompile(`^(procedure|function|class|type|const|var|implementation|interface)\b`)

// sectionStart returns the section keyword a line begins with, or ""
func sectionStart(line string) string {
	m := sectionKeyword.FindStringSubmatch(strings.ToLower(strings.TrimSpace(line)))
	if m == nil {
		return ""
	}
	return m[1]
}

// sectionType classifies a section keyword
func sectionType(keyword string) string {
	switch keyword {
	case "procedure", "function":
		return "function"
	case "class", "type", "const", "var":
		return keyword
	default:
		return "other"
	}
}

// BySection accumulates lines into chunks, preferring to break at section
// keywords once a chunk holds half the token budget and always breaking
// before the budget would be exceeded. A single line above the budget is
// emitted alone and flagged oversized.
func (c *Chunker) BySection(text string) []types.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	var (
		chunks  []types.Chunk
		current strings.Builder
		tokens  int
		first   int
		meta    = types.Chunk{Type: types.ChunkMixed}
	)

	flush := func(last int) {
		if current.Len() == 0 {
			return
		}
		meta.Content = current.String()
		meta.TokenCount = tokens
		meta.StartLine = first + 1
		meta.EndLine = last
		meta.Oversized = tokens > c.cfg.MaxTokens
		chunks = append(chunks, meta)
		current.Reset()
		tokens = 0
	}

	for i, line := range lines {
		lineTokens := c.tok.Count(line + "\n")
		keyword := sectionStart(line)

		switch {
		case keyword != "" && tokens > 0 && float64(tokens+lineTokens) > float64(c.cfg.MaxTokens)*sectionFlushRatio:
			flush(i)
			first = i
			meta = types.Chunk{Type: types.ChunkMixed, SectionType: sectionType(keyword)}
		case keyword == "" && tokens > 0 && tokens+lineTokens > c.cfg.MaxTokens:
			flush(i)
			first = i
			meta = types.Chunk{Type: types.ChunkContinuation}
		}

		if keyword != "" {
			meta.Sections = append(meta.Sections, strings.TrimSpace(line))
		}
		current.WriteString(line)
		current.WriteString("\n")
		tokens += lineTokens
	}
	flush(len(lines))

	return finalize(chunks)
}

// entityChunkType maps an entity kind to its whole-span chunk type
func entityChunkType(kind types.EntityKind) types.ChunkType {
	if kind.IsContainer() {
		return types.ChunkClass
	}
	return types.ChunkFunction
}

func lineCount(text string) int {
	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}

func finalize(chunks []types.Chunk) []types.Chunk {
	for i := range chunks {
		chunks[i].ComputeContentHash()
	}
	return chunks
}
