// Package classifier reads Delphi source files and decides how they are ingested.
//
// Files are decoded from whatever encoding they were saved in (Shift-JIS is
// common for Japanese Delphi projects), flagged when they look
// tool-generated, and bucketed by size:
//
//	f, err := classifier.ReadFile("src/Unit1.pas")
//	if f.AutoGenerated {
//	    // skip
//	}
//	large := f.Category.IsLarge()
package classifier
