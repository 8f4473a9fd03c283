package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called inside a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries holds every statement, bound to either the database or a transaction
type queries struct {
	q querier
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	queries
	db *sql.DB
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	queries
	tx *sql.Tx
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens the database at dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{queries: queries{q: db}, db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{queries: queries{q: tx}, tx: tx}, nil
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op; the transaction does not own the connection
func (t *sqliteTx) Close() error {
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}

// Project operations

func (s *queries) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (root_path, name, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query,
		project.RootPath, project.Name, project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

const projectColumns = `id, root_path, name, total_files, total_chunks,
		       index_version, last_indexed_at, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var project Project
	var name sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&project.ID, &project.RootPath, &name, &project.TotalFiles, &project.TotalChunks,
		&project.IndexVersion, &lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.Name = name.String
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *queries) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE root_path = ?`
	return scanProject(s.q.QueryRowContext(ctx, query, rootPath))
}

func (s *queries) GetProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(s.q.QueryRowContext(ctx, query, projectID))
}

func (s *queries) UpdateProject(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects
		SET name = ?, total_files = ?, total_chunks = ?, index_version = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := s.q.ExecContext(ctx, query,
		project.Name, project.TotalFiles, project.TotalChunks, project.IndexVersion,
		project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

// File operations

func (s *queries) UpsertFile(ctx context.Context, file *File) error {
	query := `
		INSERT INTO files (project_id, file_path, file_type, encoding, content_hash, mod_time,
		                   size_bytes, size_category, auto_generated, parse_error, delivered,
		                   last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			file_type = excluded.file_type,
			encoding = excluded.encoding,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			size_category = excluded.size_category,
			auto_generated = excluded.auto_generated,
			parse_error = excluded.parse_error,
			delivered = excluded.delivered,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.FileType, file.Encoding, file.ContentHash[:],
		file.ModTime, file.SizeBytes, file.SizeCategory, file.AutoGenerated, file.ParseError,
		file.Delivered, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

const fileColumns = `id, project_id, file_path, file_type, encoding, content_hash, mod_time,
		       size_bytes, size_category, auto_generated, parse_error, delivered,
		       last_indexed_at, created_at, updated_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var file File
	var hash []byte
	var encoding, category, parseError sql.NullString
	var modTime, lastIndexedAt sql.NullTime
	err := row.Scan(
		&file.ID, &file.ProjectID, &file.FilePath, &file.FileType, &encoding, &hash, &modTime,
		&file.SizeBytes, &category, &file.AutoGenerated, &parseError, &file.Delivered,
		&lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	file.Encoding = encoding.String
	file.SizeCategory = category.String
	file.ModTime = modTime.Time
	file.LastIndexedAt = lastIndexedAt.Time
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

func (s *queries) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	return scanFile(s.q.QueryRowContext(ctx, query, projectID, filePath))
}

func (s *queries) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return scanFile(s.q.QueryRowContext(ctx, query, fileID))
}

func (s *queries) DeleteFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

// MarkDelivered records that the sinks accepted the file's current content
func (s *queries) MarkDelivered(ctx context.Context, fileID int64) error {
	res, err := s.q.ExecContext(ctx, `UPDATE files SET delivered = 1 WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("failed to mark file delivered: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *queries) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY file_path`
	rows, err := s.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Entity operations

func (s *queries) UpsertEntity(ctx context.Context, entity *Entity) error {
	query := `
		INSERT INTO entities (file_id, entity_id, kind, name, source_line, end_line,
		                      description, excerpt, source_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, entity_id, source_line)
		DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			end_line = excluded.end_line,
			description = excluded.description,
			excerpt = excluded.excerpt,
			source_tag = excluded.source_tag
		RETURNING id, created_at
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		entity.FileID, entity.EntityID, entity.Kind, entity.Name, entity.SourceLine, entity.EndLine,
		entity.Description, entity.Excerpt, entity.SourceTag, now,
	).Scan(&entity.ID, &entity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

const entityColumns = `e.id, e.file_id, e.entity_id, e.kind, e.name, e.source_line, e.end_line,
		       e.description, e.excerpt, e.source_tag, e.created_at`

func scanEntities(rows *sql.Rows) ([]*Entity, error) {
	defer func() { _ = rows.Close() }()

	entities := make([]*Entity, 0)
	for rows.Next() {
		var e Entity
		var endLine sql.NullInt64
		var description, excerpt, tag sql.NullString
		err := rows.Scan(
			&e.ID, &e.FileID, &e.EntityID, &e.Kind, &e.Name, &e.SourceLine, &endLine,
			&description, &excerpt, &tag, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		e.EndLine = int(endLine.Int64)
		e.Description = description.String
		e.Excerpt = excerpt.String
		e.SourceTag = tag.String
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

func (s *queries) ListEntitiesByFile(ctx context.Context, fileID int64) ([]*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities e WHERE e.file_id = ? ORDER BY e.id`
	rows, err := s.q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func (s *queries) DeleteEntitiesByFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM entities WHERE file_id = ?`, fileID)
	return err
}

// FindEntities returns entities whose name matches name case-insensitively
func (s *queries) FindEntities(ctx context.Context, projectID int64, name string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + entityColumns + `
		FROM entities e
		JOIN files f ON e.file_id = f.id
		WHERE f.project_id = ? AND e.name LIKE ? ESCAPE '\'
		ORDER BY f.file_path, e.source_line
		LIMIT ?
	`
	rows, err := s.q.QueryContext(ctx, query, projectID, escapeLike(name), limit)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// Relationship operations

func (s *queries) InsertRelationship(ctx context.Context, rel *Relationship) error {
	query := `
		INSERT INTO relationships (file_id, src_id, tgt_id, description, keywords, weight, source_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query,
		rel.FileID, rel.SourceID, rel.TargetID, rel.Description, rel.Keywords, rel.Weight, rel.SourceTag, now)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		rel.ID = id
	}
	rel.CreatedAt = now
	return nil
}

func (s *queries) ListRelationshipsByFile(ctx context.Context, fileID int64) ([]*Relationship, error) {
	query := `
		SELECT id, file_id, src_id, tgt_id, description, keywords, weight, source_tag, created_at
		FROM relationships
		WHERE file_id = ?
		ORDER BY id
	`
	rows, err := s.q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	rels := make([]*Relationship, 0)
	for rows.Next() {
		var r Relationship
		var description, keywords, tag sql.NullString
		err := rows.Scan(&r.ID, &r.FileID, &r.SourceID, &r.TargetID, &description, &keywords, &r.Weight, &tag, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Description = description.String
		r.Keywords = keywords.String
		r.SourceTag = tag.String
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

func (s *queries) DeleteRelationshipsByFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM relationships WHERE file_id = ?`, fileID)
	return err
}

// Chunk operations

func (s *queries) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	sections, err := encodeSections(chunk.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}

	query := `
		INSERT INTO chunks (
			file_id, ordinal, content, content_hash, token_count,
			line_number, start_line, end_line, chunk_type, entity_name, entity_kind,
			part_index, total_parts, oversized, section_type, sections,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, ordinal)
		DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			line_number = excluded.line_number,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			chunk_type = excluded.chunk_type,
			entity_name = excluded.entity_name,
			entity_kind = excluded.entity_kind,
			part_index = excluded.part_index,
			total_parts = excluded.total_parts,
			oversized = excluded.oversized,
			section_type = excluded.section_type,
			sections = excluded.sections,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	err = s.q.QueryRowContext(ctx, query,
		chunk.FileID, chunk.Ordinal, chunk.Content, chunk.ContentHash[:], chunk.TokenCount,
		chunk.LineNumber, chunk.StartLine, chunk.EndLine, chunk.ChunkType, chunk.EntityName, chunk.EntityKind,
		chunk.PartIndex, chunk.TotalParts, chunk.Oversized, chunk.SectionType, sections,
		now, now,
	).Scan(&chunk.ID, &chunk.CreatedAt, &chunk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

const chunkColumns = `c.id, c.file_id, c.ordinal, c.content, c.content_hash, c.token_count,
		       c.line_number, c.start_line, c.end_line, c.chunk_type, c.entity_name, c.entity_kind,
		       c.part_index, c.total_parts, c.oversized, c.section_type, c.sections,
		       c.created_at, c.updated_at`

func scanChunk(row interface{ Scan(...interface{}) error }) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	var tokens, lineNumber, startLine, endLine, partIndex, totalParts sql.NullInt64
	var entityName, entityKind, sectionType, sections sql.NullString
	err := row.Scan(
		&chunk.ID, &chunk.FileID, &chunk.Ordinal, &chunk.Content, &hash, &tokens,
		&lineNumber, &startLine, &endLine, &chunk.ChunkType, &entityName, &entityKind,
		&partIndex, &totalParts, &chunk.Oversized, &sectionType, &sections,
		&chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	copy(chunk.ContentHash[:], hash)
	chunk.TokenCount = int(tokens.Int64)
	chunk.LineNumber = int(lineNumber.Int64)
	chunk.StartLine = int(startLine.Int64)
	chunk.EndLine = int(endLine.Int64)
	chunk.EntityName = entityName.String
	chunk.EntityKind = entityKind.String
	chunk.PartIndex = int(partIndex.Int64)
	chunk.TotalParts = int(totalParts.Int64)
	chunk.SectionType = sectionType.String
	if chunk.Sections, err = decodeSections(sections.String); err != nil {
		return nil, fmt.Errorf("failed to decode sections of chunk %d: %w", chunk.ID, err)
	}
	return &chunk, nil
}

func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *queries) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks c WHERE c.id = ?`
	return scanChunk(s.q.QueryRowContext(ctx, query, chunkID))
}

func (s *queries) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks c WHERE c.file_id = ? ORDER BY c.ordinal`
	rows, err := s.q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ListChunksWithoutEmbedding returns chunks of the project that have no
// stored embedding yet, oldest first
func (s *queries) ListChunksWithoutEmbedding(ctx context.Context, projectID int64, limit int) ([]*Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks c
		JOIN files f ON c.file_id = f.id
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE f.project_id = ? AND e.id IS NULL
		ORDER BY c.id
	`
	args := []interface{}{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func (s *queries) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID)
	return err
}

// Embedding operations

func (s *queries) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *queries) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := s.q.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

// Search operations

func (s *queries) SearchVector(ctx context.Context, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.q, projectID, queryVector, limit, filters)
}

func (s *queries) SearchText(ctx context.Context, projectID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.q, projectID, query, limit, filters)
}

// Ingestion run operations

func (s *queries) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	query := `
		INSERT INTO ingestion_runs (id, project_id, status, files_total, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, query, run.ID, run.ProjectID, run.Status, run.FilesTotal, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}
	return nil
}

func (s *queries) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	query := `
		UPDATE ingestion_runs
		SET status = ?, files_total = ?, processed = ?, skipped = ?, failed = ?,
		    auto_generated = ?, chunks = ?, error = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := s.q.ExecContext(ctx, query,
		run.Status, run.FilesTotal, run.Processed, run.Skipped, run.Failed,
		run.AutoGenerated, run.Chunks, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish ingestion run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *queries) LatestRun(ctx context.Context, projectID int64) (*Run, error) {
	query := `
		SELECT id, project_id, status, files_total, processed, skipped, failed,
		       auto_generated, chunks, error, started_at, finished_at
		FROM ingestion_runs
		WHERE project_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`
	var run Run
	var runErr sql.NullString
	var finishedAt sql.NullTime
	err := s.q.QueryRowContext(ctx, query, projectID).Scan(
		&run.ID, &run.ProjectID, &run.Status, &run.FilesTotal, &run.Processed, &run.Skipped, &run.Failed,
		&run.AutoGenerated, &run.Chunks, &runErr, &run.StartedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Error = runErr.String
	run.FinishedAt = finishedAt.Time
	return &run, nil
}

// Status operations

func (s *queries) count(ctx context.Context, query string, projectID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, query, projectID).Scan(&n)
	return n, err
}

func (s *queries) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&status.FilesCount, `SELECT COUNT(*) FROM files WHERE project_id = ?`},
		{&status.AutoGeneratedCount, `SELECT COUNT(*) FROM files WHERE project_id = ? AND auto_generated = 1`},
		{&status.EntitiesCount, `SELECT COUNT(*) FROM entities e JOIN files f ON e.file_id = f.id WHERE f.project_id = ?`},
		{&status.RelationshipsCount, `SELECT COUNT(*) FROM relationships r JOIN files f ON r.file_id = f.id WHERE f.project_id = ?`},
		{&status.ChunksCount, `SELECT COUNT(*) FROM chunks c JOIN files f ON c.file_id = f.id WHERE f.project_id = ?`},
		{&status.EmbeddingsCount, `SELECT COUNT(*) FROM embeddings e JOIN chunks c ON e.chunk_id = c.id JOIN files f ON c.file_id = f.id WHERE f.project_id = ?`},
	}
	for _, c := range counts {
		if *c.dst, err = s.count(ctx, c.query, projectID); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	if err := s.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	run, err := s.LatestRun(ctx, projectID)
	switch {
	case err == nil:
		status.LastRun = run
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true,
	}

	return status, nil
}
