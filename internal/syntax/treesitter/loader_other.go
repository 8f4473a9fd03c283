//go:build !(darwin || linux)

package treesitter

import (
	"errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrUnsupportedPlatform is returned where grammar libraries cannot be loaded
var ErrUnsupportedPlatform = errors.New("grammar loading is not supported on this platform")

// Loader is unavailable on this platform
type Loader struct{}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

func WithTrustedDir(string) LoaderOption                { return func(*Loader) {} }
func WithChecksum(string, string) LoaderOption          { return func(*Loader) {} }
func WithRequireVerification(bool) LoaderOption         { return func(*Loader) {} }
func NewLoader(...LoaderOption) *Loader                 { return &Loader{} }
func (l *Loader) Close()                                {}
func LibraryName(name string) string                    { return "tree-sitter-" + name + ".dll" }
func (l *Loader) Load(string) (*sitter.Language, error) { return nil, ErrUnsupportedPlatform }
