// Package syntax defines the read-only syntax tree view consumed by the
// entity extractor.
//
// Trees come from a grammar-driven provider (see the treesitter subpackage)
// or are assembled in memory with Builder, which is how the extractor and
// chunker tests describe Pascal constructs without loading a grammar:
//
//	b := syntax.NewBuilder(src)
//	root := b.Root("root",
//	    b.Lines("class_type", 3, 8,
//	        b.Text("identifier", "TFoo", 3)))
//	tree := b.Tree(root)
package syntax
