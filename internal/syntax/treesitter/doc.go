// Package treesitter provides the grammar-driven syntax.Parser implementation.
//
// Grammars are shared libraries (libtree-sitter-pascal.so and friends) opened
// at runtime through purego, so no cgo toolchain is needed to build delphirag:
//
//	loader := treesitter.NewLoader(treesitter.WithTrustedDir(cfg.Parser.GrammarDir))
//	lang, err := loader.Load("pascal")
//	if err != nil {
//	    // fall back to section chunking
//	}
//	p, _ := treesitter.NewParser(lang)
//	tree, err := p.Parse(ctx, src)
//
// Libraries are only accepted from trusted directories, must not be
// world-writable, and can be pinned to a sha256 checksum.
package treesitter
