package classifier

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// SizeCategory buckets files by size to pick a chunking strategy
type SizeCategory string

const (
	SizeSmall     SizeCategory = "small"
	SizeMedium    SizeCategory = "medium"
	SizeLarge     SizeCategory = "large"
	SizeVeryLarge SizeCategory = "very_large"
)

// Categorize returns the size category of a file of size bytes
func Categorize(size int64) SizeCategory {
	switch {
	case size < 10*1024:
		return SizeSmall
	case size < 100*1024:
		return SizeMedium
	case size < 1024*1024:
		return SizeLarge
	default:
		return SizeVeryLarge
	}
}

// IsLarge reports whether files of this category get structure-preserving chunking
func (c SizeCategory) IsLarge() bool {
	return c == SizeLarge || c == SizeVeryLarge
}

// FileType is the kind of Delphi source file
type FileType string

const (
	FilePascal FileType = "pas"
	FileForm   FileType = "dfm"
	FileOther  FileType = "other"
)

// TypeOf returns the file type implied by the extension of path
func TypeOf(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pas", ".dpr", ".dpk", ".inc":
		return FilePascal
	case ".dfm":
		return FileForm
	default:
		return FileOther
	}
}

var (
	generatedNamePatterns = compileAll([]string{
		"*.designer.pas",
		"*.designer.dfm",
		"*generated*",
		"*autogen*",
		"*auto-gen*",
		"*.g.pas",
		"*.generated.pas",
	})

	generatedMarkers = []string{
		"auto-generated",
		"autogenerated",
		"generated automatically",
		"do not edit",
		"do not modify",
		"generated code",
		"this file is automatically generated",
	}
)

// headerLines is how many leading lines are searched for generator markers
const headerLines = 10

func compileAll(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, glob.MustCompile(p))
	}
	return out
}

// IsAutoGenerated reports whether a file looks tool-generated, judged by its
// name or by marker phrases in its first lines
func IsAutoGenerated(path, content string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, g := range generatedNamePatterns {
		if g.Match(name) {
			return true
		}
	}

	lines := strings.SplitN(content, "\n", headerLines+1)
	if len(lines) > headerLines {
		lines = lines[:headerLines]
	}
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range generatedMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// File is a classified source file ready for parsing
type File struct {
	Path          string
	Type          FileType
	Text          string
	Encoding      string
	Size          int64
	ModTime       time.Time
	ContentHash   [32]byte
	Category      SizeCategory
	AutoGenerated bool
}

// Name returns the base name of the file
func (f *File) Name() string {
	return filepath.Base(f.Path)
}

// ReadFile reads, decodes and classifies the file at path
func ReadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Classify(path, raw, info.ModTime()), nil
}

// Classify decodes and classifies raw file content
func Classify(path string, raw []byte, modTime time.Time) *File {
	text, enc := Decode(raw)
	return &File{
		Path:          path,
		Type:          TypeOf(path),
		Text:          text,
		Encoding:      enc,
		Size:          int64(len(raw)),
		ModTime:       modTime,
		ContentHash:   sha256.Sum256(raw),
		Category:      Categorize(int64(len(raw))),
		AutoGenerated: IsAutoGenerated(path, text),
	}
}
