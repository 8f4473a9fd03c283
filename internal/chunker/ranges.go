package chunker

import (
	"strings"
	"unicode"
)

// isBlockEnd reports whether a line closes a Pascal block
func isBlockEnd(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "end;", "end.":
		return true
	default:
		return false
	}
}

// startsUnindented reports whether line is non-empty and begins at column 0
func startsUnindented(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	r := []rune(line)[0]
	return !unicode.IsSpace(r)
}

// lineRange infers the [start, end) line span of a definition anchored at
// the 0-based line start. The span stops at the first block end, or at the
// current line when the following line starts unindented, and never covers
// more than lookahead lines. An unindented closing "end;" after the current
// line is left out; ScanBalanced keeps it.
func lineRange(lines []string, start, lookahead int) (int, int) {
	limit := start + lookahead
	if limit > len(lines) {
		limit = len(lines)
	}
	for i := start + 1; i < limit; i++ {
		if isBlockEnd(lines[i]) {
			return start, i + 1
		}
		if i+1 < len(lines) && startsUnindented(lines[i+1]) {
			return start, i + 1
		}
	}
	return start, limit
}

var (
	blockOpeners = map[string]bool{
		"begin":  true,
		"case":   true,
		"try":    true,
		"record": true,
		"asm":    true,
	}
	routineHeaders = map[string]bool{
		"procedure":   true,
		"function":    true,
		"constructor": true,
		"destructor":  true,
	}
)

// balancedRange scans forward counting begin/end nesting. The span ends on
// the line where depth returns to zero after a block opened. Before any block
// opens, a new routine header or an "end;" line closes the span. When no end
// is found within lookahead lines, lineRange decides.
func balancedRange(lines []string, start, lookahead int) (int, int) {
	limit := start + lookahead
	if limit > len(lines) {
		limit = len(lines)
	}

	depth := 0
	opened := false
	for i := start; i < limit; i++ {
		words := codeWords(lines[i])
		if i > start && !opened && len(words) > 0 {
			first := words[0]
			if first == "class" && len(words) > 1 {
				first = words[1]
			}
			if routineHeaders[first] {
				return start, i
			}
		}
		for j, w := range words {
			switch {
			case blockOpeners[w]:
				depth++
				opened = true
			case (w == "class" || w == "interface") && j > 0 && words[j-1] == "=":
				depth++
				opened = true
			case w == "end":
				if depth > 0 {
					depth--
				} else if !opened {
					return start, i + 1
				}
			}
		}
		if opened && depth == 0 {
			return start, i + 1
		}
	}
	return lineRange(lines, start, lookahead)
}

// codeWords returns lowercased words and "=" tokens of a line with string
// literals and comments removed. Only single-line comment forms are handled.
func codeWords(line string) []string {
	var (
		words   []string
		current strings.Builder
		inStr   bool
		inBrace bool
	)
	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inStr:
			if r == '\'' {
				inStr = false
			}
		case inBrace:
			if r == '}' {
				inBrace = false
			}
		case r == '\'':
			flush()
			inStr = true
		case r == '{':
			flush()
			inBrace = true
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			flush()
			return words
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			current.WriteRune(r)
		case r == '=':
			flush()
			words = append(words, "=")
		default:
			flush()
		}
	}
	flush()
	return words
}

// classRange spans from start to the first "end;" line, or to the end of
// the text when there is none
func classRange(lines []string, start int) (int, int) {
	for i := start + 1; i < len(lines); i++ {
		if strings.ToLower(strings.TrimSpace(lines[i])) == "end;" {
			return start, i + 1
		}
	}
	return start, len(lines)
}

// inferRange picks the span of an anchor according to the configured scan
func (c *Chunker) inferRange(lines []string, a Anchor) (int, int) {
	start := a.Line - 1
	switch c.cfg.RangeScan {
	case ScanExplicit:
		if a.EndLine >= a.Line {
			end := a.EndLine
			if end > len(lines) {
				end = len(lines)
			}
			return start, end
		}
		return lineRange(lines, start, c.cfg.Lookahead)
	case ScanBalanced:
		return balancedRange(lines, start, c.cfg.Lookahead)
	default:
		return lineRange(lines, start, c.cfg.Lookahead)
	}
}
