package classifier

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultExtensions are the file extensions ingested by default
var DefaultExtensions = []string{".pas", ".dfm"}

var skippedDirs = map[string]bool{
	"__pycache__":  true,
	"venv":         true,
	"node_modules": true,
	"__history":    true,
	"__recovery":   true,
}

// SkipDir reports whether a directory named name is never searched
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skippedDirs[name]
}

// DiscoverOptions filters file discovery
type DiscoverOptions struct {
	Extensions []string
	Exclude    []string // globs over slash-separated paths relative to the root
}

// Discover returns the sorted paths of matching files under root.
// Hidden directories and tool directories are skipped.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	wanted := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		wanted[e] = true
	}

	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, p := range opts.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		excludes = append(excludes, g)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !wanted[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, g := range excludes {
			if g.Match(rel) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
