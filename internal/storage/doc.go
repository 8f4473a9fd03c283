// Package storage provides SQLite persistence for ingested Delphi sources.
//
// The storage layer keeps:
//   - Projects (one per ingested source root)
//   - Files with content hashes, encodings and size categories
//   - Extracted entities and membership relationships
//   - Chunks with their metadata, indexed by FTS5
//   - Vector embeddings for chunks
//   - Ingestion runs and their statistics
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.delphirag/project.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	for i, c := range chunks {
//	    if err := tx.UpsertChunk(ctx, storage.FromTypesChunk(c, file.ID, i)); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// Re-ingesting a file replaces its entities, relationships and chunks;
// deleting chunks cascades to their embeddings.
//
// # Search
//
// SearchText ranks chunks with FTS5 bm25 over content and entity names.
// SearchVector ranks by cosine similarity, inside SQLite when built with
// the sqlite_vec tag and in Go otherwise. Both accept SearchFilters on
// chunk type, entity kind, file type and a path glob.
//
// # Migrations
//
// Schema versions are semver strings recorded in schema_version and applied
// in order on open.
package storage
