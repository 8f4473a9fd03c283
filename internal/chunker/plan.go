package chunker

import "github.com/dshills/delphirag/pkg/types"

// Plan chunks a Pascal source file according to the configured strategy.
// A nil result means the file could not be parsed. large selects the
// structure-preserving strategies used for large files.
func (c *Chunker) Plan(text string, result *types.ParseResult, large bool) []types.Chunk {
	switch c.cfg.Strategy {
	case StrategyWhole:
		return c.WholeFile(text)
	case StrategySections:
		return c.Fallback(text, true)
	case StrategyEntities:
		if result == nil {
			return c.Fallback(text, large)
		}
		return c.BuildChunks(text, result.Entities)
	}

	if result == nil {
		return c.Fallback(text, large)
	}
	outline := result.Outline
	if len(outline) == 0 {
		outline = OutlineFromEntities(result.Entities)
	}
	if large {
		return c.Intelligent(text, outline)
	}
	return c.Simple(text, outline)
}

// Fallback chunks text without structural information: section delimiters
// for large files, the whole file otherwise
func (c *Chunker) Fallback(text string, large bool) []types.Chunk {
	if large {
		if chunks := c.BySection(text); len(chunks) > 0 {
			return chunks
		}
	}
	return c.WholeFile(text)
}

// OutlineFromEntities derives a flat outline from graph entities
func OutlineFromEntities(entities []types.Entity) []types.OutlineItem {
	var items []types.OutlineItem
	for _, e := range entities {
		if e.Kind == types.KindProperty {
			continue
		}
		items = append(items, types.OutlineItem{
			Name:    e.Name,
			Kind:    e.Kind,
			Line:    e.SourceLine,
			EndLine: e.EndLine,
			Excerpt: e.Excerpt,
		})
	}
	return items
}
