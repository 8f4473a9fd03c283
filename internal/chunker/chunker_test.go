package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/delphirag/internal/tokenizer"
	"github.com/dshills/delphirag/internal/tokenizer/tokenizertest"
	"github.com/dshills/delphirag/pkg/types"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("t%d", i)
	}
	return strings.Join(parts, " ")
}

func newChunker(maxTokens, overlap int) (*Chunker, *tokenizertest.Words) {
	tok := tokenizertest.New()
	return New(tok, Config{MaxTokens: maxTokens, OverlapTokens: overlap}), tok
}

func TestSplitTokens_OverlapIsExact(t *testing.T) {
	c, tok := newChunker(8000, 100)
	text := words(20000)

	parts := c.SplitTokens(text, types.ChunkText)
	require.Len(t, parts, 3)

	assert.Equal(t, 8000, parts[0].TokenCount)
	assert.Equal(t, 8000, parts[1].TokenCount)
	assert.Equal(t, 4200, parts[2].TokenCount)
	assert.True(t, strings.HasPrefix(parts[1].Content, "t7900 "))
	assert.True(t, strings.HasPrefix(parts[2].Content, "t15800 "))
	assert.True(t, strings.HasSuffix(parts[2].Content, "t19999"))

	for i := 0; i+1 < len(parts); i++ {
		prev, err := tok.Encode(parts[i].Content)
		require.NoError(t, err)
		next, err := tok.Encode(parts[i+1].Content)
		require.NoError(t, err)
		assert.Equal(t, prev[len(prev)-100:], next[:100], "parts %d and %d", i+1, i+2)
	}

	for i, p := range parts {
		assert.Equal(t, types.ChunkText, p.Type)
		assert.Equal(t, i+1, p.PartIndex)
		assert.Equal(t, 3, p.TotalParts)
		assert.False(t, p.Oversized)
	}
}

func TestSplitTokens_ClampsOverlap(t *testing.T) {
	c, _ := newChunker(3, 5)
	assert.Equal(t, 2, c.Config().OverlapTokens)

	parts := c.SplitTokens(words(10), types.ChunkText)
	require.Len(t, parts, 8)
	assert.True(t, strings.HasSuffix(parts[len(parts)-1].Content, "t9"))
	for _, p := range parts {
		assert.LessOrEqual(t, p.TokenCount, 3)
	}
}

func TestSplitTokens_SingleWindow(t *testing.T) {
	c, _ := newChunker(10, 2)
	parts := c.SplitTokens("a b c", types.ChunkFunctionPart)
	require.Len(t, parts, 1)
	assert.Equal(t, "a b c", parts[0].Content)
	assert.Equal(t, 1, parts[0].PartIndex)
	assert.Equal(t, 1, parts[0].TotalParts)
}

type failingTokenizer struct{}

func (failingTokenizer) Encode(string) ([]int, error) { return nil, tokenizer.ErrUnavailable }
func (failingTokenizer) Decode([]int) (string, error) { return "", tokenizer.ErrUnavailable }
func (failingTokenizer) Count(text string) int        { return tokenizer.Estimate(text) }

func TestSplitTokens_FallsBackToRunes(t *testing.T) {
	c := New(failingTokenizer{}, Config{MaxTokens: 10, OverlapTokens: 4})

	parts := c.SplitTokens("abcdefghijkl", types.ChunkText)
	got := make([]string, len(parts))
	for i, p := range parts {
		got[i] = p.Content
		assert.LessOrEqual(t, p.TokenCount, 10)
	}
	assert.Equal(t, []string{"abcde", "defgh", "ghijk", "jkl"}, got)
}

func TestWholeFile_CommentOnly(t *testing.T) {
	c, _ := newChunker(8000, 100)
	text := "{ header comment }\n// nothing else here\n"

	chunks := c.BuildChunks(text, nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, types.ChunkFullFile, chunks[0].Type)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.NotEqual(t, [32]byte{}, chunks[0].ContentHash)
}

func TestWholeFile_EmptyAndOversize(t *testing.T) {
	c, _ := newChunker(4, 1)
	assert.Empty(t, c.WholeFile("  \n"))

	chunks := c.WholeFile("a b c d e f")
	require.Len(t, chunks, 2)
	assert.Equal(t, types.ChunkText, chunks[0].Type)
}

func TestByEntities_SplitsLargeRoutine(t *testing.T) {
	c, _ := newChunker(8000, 100)
	text := "procedure Big;\nbegin\n  " + words(19996) + "\n  end;"
	entities := []types.Entity{{Name: "Big", Kind: types.KindProcedure, SourceLine: 1}}

	chunks := c.BuildChunks(text, entities)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, types.ChunkFunctionPart, ch.Type)
		assert.Equal(t, "Big", ch.EntityName)
		assert.Equal(t, types.KindProcedure, ch.EntityKind)
		assert.Equal(t, i+1, ch.PartIndex)
		assert.Equal(t, 3, ch.TotalParts)
		assert.Equal(t, 1, ch.StartLine)
		assert.Equal(t, 4, ch.EndLine)
	}
	assert.Equal(t, 8000, chunks[0].TokenCount)
	assert.Equal(t, 8000, chunks[1].TokenCount)
	assert.Equal(t, 4200, chunks[2].TokenCount)
}

const unitSource = `unit Sample;
interface
type
  TGreeter = class
    procedure Greet;
    function Name: string;
  end;
implementation
procedure TGreeter.Greet;
begin
  WriteLn('hi');
end;
function TGreeter.Name: string;
begin
  Result := 'x';
end;
end.`

func unitEntities() []types.Entity {
	return []types.Entity{
		{Name: "TGreeter", Kind: types.KindClass, SourceLine: 4},
		{Name: "Greet", Kind: types.KindMethod, SourceLine: 5},
		{Name: "Name", Kind: types.KindMethod, SourceLine: 6},
		{Name: "Greet", Kind: types.KindMethod, SourceLine: 9},
		{Name: "Name", Kind: types.KindMethod, SourceLine: 13},
	}
}

func TestByEntities_LineScanRanges(t *testing.T) {
	c, _ := newChunker(8000, 100)
	chunks := c.BuildChunks(unitSource, unitEntities())
	require.Len(t, chunks, 5)

	assert.Equal(t, types.ChunkClass, chunks[0].Type)
	assert.Equal(t, 4, chunks[0].StartLine)
	assert.Equal(t, 7, chunks[0].EndLine)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "  end;"))

	// member declarations stop at the enclosing end;
	assert.Equal(t, 5, chunks[1].StartLine)
	assert.Equal(t, 7, chunks[1].EndLine)

	assert.Equal(t, types.ChunkFunction, chunks[3].Type)
	// the unindented closing end; is left to the next span
	assert.Equal(t, "procedure TGreeter.Greet;\nbegin\n  WriteLn('hi');", chunks[3].Content)
	assert.Equal(t, 9, chunks[3].LineNumber)
	assert.Equal(t, 11, chunks[3].EndLine)
}

func TestByEntities_LineCoverage(t *testing.T) {
	c, _ := newChunker(8000, 100)
	chunks := c.BuildChunks(unitSource, unitEntities())

	covered := make(map[int]bool)
	for _, ch := range chunks {
		for l := ch.StartLine; l <= ch.EndLine; l++ {
			covered[l] = true
		}
	}
	for i, line := range strings.Split(unitSource, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		isDefinition := strings.HasPrefix(lower, "procedure ") ||
			strings.HasPrefix(lower, "function ") ||
			strings.Contains(lower, "= class")
		if isDefinition {
			assert.True(t, covered[i+1], "line %d %q not covered", i+1, line)
		}
	}
}

func TestByEntities_SkipsInvalidAnchors(t *testing.T) {
	c, _ := newChunker(8000, 100)
	chunks := c.ByEntities("a\nb", []Anchor{{Name: "x", Line: 0}, {Name: "y", Line: 9}})
	assert.Empty(t, chunks)

	// BuildChunks never drops the file when anchors are unusable
	all := c.BuildChunks("a\nb", []types.Entity{{Name: "x", Kind: types.KindFunction, SourceLine: 40}})
	require.Len(t, all, 1)
	assert.Equal(t, types.ChunkFullFile, all[0].Type)
}

func TestByEntities_ExplicitScan(t *testing.T) {
	c := New(tokenizertest.New(), Config{MaxTokens: 8000, RangeScan: ScanExplicit})
	chunks := c.ByEntities(unitSource, []Anchor{
		{Name: "Greet", Kind: types.KindMethod, Line: 9, EndLine: 10},
		{Name: "Name", Kind: types.KindMethod, Line: 13},
	})
	require.Len(t, chunks, 2)
	assert.Equal(t, "procedure TGreeter.Greet;\nbegin", chunks[0].Content)
	assert.Equal(t, 15, chunks[1].EndLine)
}

func TestBySection(t *testing.T) {
	c, _ := newChunker(10, 0)
	text := strings.Join([]string{
		"unit A;",
		"interface",
		"uses X, Y;",
		"type",
		"  TA = Integer;",
		"procedure P;",
		"begin",
		"  a b c d e f g h",
		"end;",
	}, "\n") + "\n"

	chunks := c.BySection(text)
	require.Len(t, chunks, 4)

	assert.Equal(t, types.ChunkMixed, chunks[0].Type)
	assert.Equal(t, "unit A;\ninterface\nuses X, Y;\n", chunks[0].Content)
	assert.Equal(t, []string{"interface"}, chunks[0].Sections)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)

	assert.Equal(t, types.ChunkMixed, chunks[1].Type)
	assert.Equal(t, "type", chunks[1].SectionType)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 5, chunks[1].EndLine)

	assert.Equal(t, "function", chunks[2].SectionType)
	assert.Equal(t, []string{"procedure P;"}, chunks[2].Sections)
	assert.Equal(t, 3, chunks[2].TokenCount)

	assert.Equal(t, types.ChunkContinuation, chunks[3].Type)
	assert.Equal(t, "  a b c d e f g h\nend;\n", chunks[3].Content)
	assert.Equal(t, 9, chunks[3].TokenCount)

	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Content)
		assert.LessOrEqual(t, ch.TokenCount, 10)
		assert.False(t, ch.Oversized)
	}
	assert.Equal(t, text, joined.String())
}

func TestBySection_OversizedLine(t *testing.T) {
	c, _ := newChunker(4, 0)
	chunks := c.BySection("a\n" + words(10) + "\nb")
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].Oversized)
	assert.True(t, chunks[1].Oversized)
	assert.Equal(t, 10, chunks[1].TokenCount)
	assert.False(t, chunks[2].Oversized)
}

func TestSectionStartRequiresWholeWord(t *testing.T) {
	assert.Equal(t, "type", sectionStart("  Type"))
	assert.Equal(t, "var", sectionStart("var x: Integer;"))
	assert.Equal(t, "", sectionStart("variant := 1;"))
	assert.Equal(t, "", sectionStart("typed := 1;"))
	assert.Equal(t, "function", sectionType("procedure"))
	assert.Equal(t, "other", sectionType("implementation"))
}

func TestTokenBoundHolds(t *testing.T) {
	c, tok := newChunker(50, 5)
	var sb strings.Builder
	sb.WriteString("unit Big;\ninterface\nimplementation\n")
	var entities []types.Entity
	line := 4
	for i := 0; i < 20; i++ {
		sb.WriteString(fmt.Sprintf("procedure P%d;\nbegin\n  %s\nend;\n", i, words(i*7)))
		entities = append(entities, types.Entity{Name: fmt.Sprintf("P%d", i), Kind: types.KindProcedure, SourceLine: line})
		line += 4
	}
	text := sb.String()

	all := append(c.BuildChunks(text, entities), c.BySection(text)...)
	all = append(all, c.WholeFile(text)...)
	all = append(all, c.Intelligent(text, OutlineFromEntities(entities))...)
	for _, ch := range all {
		if ch.Oversized {
			continue
		}
		assert.LessOrEqual(t, tok.Count(ch.Content), 50, "%s chunk %q", ch.Type, ch.EntityName)
	}
}

func TestChunkingIsDeterministic(t *testing.T) {
	c, _ := newChunker(20, 3)
	first := c.BuildChunks(unitSource, unitEntities())
	second := c.BuildChunks(unitSource, unitEntities())
	assert.Equal(t, first, second)
}

func TestIntelligent(t *testing.T) {
	c, _ := newChunker(8000, 100)
	outline := []types.OutlineItem{
		{Name: "TGreeter", Kind: types.KindClass, Line: 4},
		{Name: "Greet", Kind: types.KindMethod, Line: 9},
	}
	chunks := c.Intelligent(unitSource, outline)
	require.Len(t, chunks, 2)
	assert.Equal(t, types.ChunkFunction, chunks[0].Type)
	assert.Equal(t, "Greet", chunks[0].EntityName)
	assert.Equal(t, types.ChunkClass, chunks[1].Type)
	assert.Equal(t, 7, chunks[1].EndLine)

	// nothing recognized: section fallback
	fallback := c.Intelligent(unitSource, nil)
	require.NotEmpty(t, fallback)
	assert.Equal(t, types.ChunkMixed, fallback[0].Type)
}

func TestSimple(t *testing.T) {
	c, _ := newChunker(8000, 100)
	outline := []types.OutlineItem{
		{Name: "TGreeter", Kind: types.KindClass, Line: 4, Excerpt: "TGreeter = class..."},
		{Name: "Greet", Kind: types.KindProcedure, Line: 9, Excerpt: "procedure TGreeter.Greet;..."},
	}
	chunks := c.Simple(unitSource, outline)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Function: Greet\nType: procedure\nLine: 9\n\nprocedure TGreeter.Greet;...", chunks[0].Content)
	assert.Equal(t, "Class: TGreeter\nLine: 4\n\nTGreeter = class...", chunks[1].Content)

	whole := c.Simple(unitSource, nil)
	require.Len(t, whole, 1)
	assert.Equal(t, types.ChunkFullFile, whole[0].Type)
}

func TestForm(t *testing.T) {
	c, _ := newChunker(5, 1)
	small := c.Form("object Form1: TForm1\nend")
	require.Len(t, small, 1)
	assert.Equal(t, types.ChunkFullForm, small[0].Type)

	large := c.Form(words(12))
	require.Len(t, large, 3)
	for _, ch := range large {
		assert.Equal(t, types.ChunkPartialForm, ch.Type)
	}
}

func TestPlan(t *testing.T) {
	c, _ := newChunker(8000, 100)
	result := &types.ParseResult{Entities: unitEntities()}

	small := c.Plan(unitSource, result, false)
	require.NotEmpty(t, small)
	assert.True(t, strings.HasPrefix(small[0].Content, "Function: "))

	large := c.Plan(unitSource, result, true)
	require.NotEmpty(t, large)
	assert.Equal(t, types.ChunkFunction, large[0].Type)

	failedSmall := c.Plan(unitSource, nil, false)
	require.Len(t, failedSmall, 1)
	assert.Equal(t, types.ChunkFullFile, failedSmall[0].Type)

	failedLarge := c.Plan(unitSource, nil, true)
	assert.Equal(t, types.ChunkMixed, failedLarge[0].Type)

	entities := New(tokenizertest.New(), Config{MaxTokens: 8000, Strategy: StrategyEntities})
	assert.Len(t, entities.Plan(unitSource, result, false), 5)

	whole := New(tokenizertest.New(), Config{MaxTokens: 8000, Strategy: StrategyWhole})
	assert.Len(t, whole.Plan(unitSource, result, true), 1)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{RangeScan: "fuzzy"}.Validate())
	assert.Error(t, Config{Strategy: "random"}.Validate())
	assert.Error(t, Config{MaxTokens: -1}.Validate())
}

func TestNilTokenizerUsesEstimate(t *testing.T) {
	c := New(nil, Config{MaxTokens: 10})
	chunks := c.WholeFile("abcd")
	require.Len(t, chunks, 1)
	assert.Equal(t, utf8.RuneCountInString("abcd")*2, chunks[0].TokenCount)
}
