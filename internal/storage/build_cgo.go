//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Vector distances are computed
// inside SQLite by the sqlite-vec extension, which must be loadable by the
// mattn/go-sqlite3 driver.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
