//go:build darwin || linux

package treesitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ebitengine/purego"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

var validGrammarName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

type grammarHandle struct {
	lib      uintptr
	langPtr  unsafe.Pointer
	checksum string
}

// Loader opens tree-sitter grammar shared libraries from trusted directories
type Loader struct {
	grammars      map[string]*grammarHandle
	trustedDirs   []string
	checksums     map[string]string
	requireVerify bool
	mu            sync.Mutex
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithTrustedDir adds a directory searched for grammar libraries
func WithTrustedDir(dir string) LoaderOption {
	return func(l *Loader) {
		if dir == "" {
			return
		}
		if abs, err := filepath.Abs(dir); err == nil {
			l.trustedDirs = append(l.trustedDirs, abs)
		}
	}
}

// WithChecksum pins the sha256 of a grammar library
func WithChecksum(name, sha256sum string) LoaderOption {
	return func(l *Loader) {
		l.checksums[name] = sha256sum
	}
}

// WithRequireVerification rejects libraries without a pinned checksum
func WithRequireVerification(require bool) LoaderOption {
	return func(l *Loader) {
		l.requireVerify = require
	}
}

// NewLoader creates a Loader searching the given options' dirs before the system ones
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		grammars:  make(map[string]*grammarHandle),
		checksums: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.trustedDirs = append(l.trustedDirs, systemDirs()...)
	return l
}

func systemDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/opt/homebrew/lib", "/usr/local/lib"}
	default:
		return []string{"/usr/local/lib", "/usr/lib"}
	}
}

// Load returns the language exported by libtree-sitter-<name>
func (l *Loader) Load(name string) (*sitter.Language, error) {
	if !validGrammarName.MatchString(name) {
		return nil, fmt.Errorf("invalid grammar name %q", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.grammars[name]; ok {
		return sitter.NewLanguage(h.langPtr), nil
	}

	path, err := l.find(name)
	if err != nil {
		return nil, err
	}

	checksum, err := l.verify(name, path)
	if err != nil {
		return nil, err
	}

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}

	var langFunc func() unsafe.Pointer
	purego.RegisterLibFunc(&langFunc, lib, "tree_sitter_"+name)

	ptr := langFunc()
	if ptr == nil {
		_ = purego.Dlclose(lib)
		return nil, fmt.Errorf("tree_sitter_%s returned null", name)
	}

	l.grammars[name] = &grammarHandle{lib: lib, langPtr: ptr, checksum: checksum}
	return sitter.NewLanguage(ptr), nil
}

// Close unloads every grammar library
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, h := range l.grammars {
		_ = purego.Dlclose(h.lib)
		delete(l.grammars, name)
	}
}

func (l *Loader) find(name string) (string, error) {
	libName := LibraryName(name)
	for _, dir := range l.trustedDirs {
		path := filepath.Join(dir, libName)
		if err := checkLibrary(path, dir); err != nil {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("grammar %q not found in trusted directories", name)
}

func (l *Loader) verify(name, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read library: %w", err)
	}
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	if expected, ok := l.checksums[name]; ok {
		if !strings.EqualFold(expected, checksum) {
			return "", fmt.Errorf("checksum mismatch for %s: expected %s, got %s", name, expected, checksum)
		}
	} else if l.requireVerify {
		return "", fmt.Errorf("no checksum registered for %s", name)
	}
	return checksum, nil
}

func checkLibrary(path, dir string) error {
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return err
	}
	if !isSubpath(realPath, realDir) {
		return fmt.Errorf("path escapes trusted directory: %s", path)
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("expected file, got directory: %s", path)
	}
	if worldWritable(info) {
		return fmt.Errorf("world-writable file rejected: %s", path)
	}
	return nil
}

func isSubpath(child, parent string) bool {
	child = filepath.Clean(child)
	parent = filepath.Clean(parent)
	if child == parent {
		return true
	}
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}

func worldWritable(info os.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return stat.Mode&0002 != 0
}

// LibraryName returns the platform file name of a grammar library
func LibraryName(name string) string {
	if runtime.GOOS == "darwin" {
		return "libtree-sitter-" + name + ".dylib"
	}
	return "libtree-sitter-" + name + ".so"
}
