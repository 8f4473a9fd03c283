package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// searchVector ranks chunks by cosine similarity to queryVector
func searchVector(ctx context.Context, q querier, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, projectID, queryVector, limit, filters)
	}
	return searchVectorFallback(ctx, q, projectID, queryVector, limit, filters)
}

// searchVectorOptimized computes distances inside SQLite with sqlite-vec
func searchVectorOptimized(ctx context.Context, q querier, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	blob := serializeVector(queryVector)

	// vec_distance_cosine is a distance; 1 - distance keeps scores comparable
	// with the fallback path
	query := `
		SELECT c.id, 1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ? AND e.dimension = ?
	`
	args := []interface{}{blob, projectID, len(queryVector)}
	query, args = applyFilters(query, args, filters)

	if filters != nil && filters.MinRelevance > 0 {
		query += " AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?"
		args = append(args, blob, filters.MinRelevance)
	}
	query += " ORDER BY similarity DESC, c.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback loads candidate vectors and ranks them in Go
func searchVectorFallback(ctx context.Context, q querier, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT c.id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.project_id = ?
	`
	args := []interface{}{projectID}
	query, args = applyFilters(query, args, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, filters)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)
	return buildVectorResults(candidates, limit), nil
}

// searchText performs BM25 full-text search over chunk content and entity names
func searchText(ctx context.Context, q querier, projectID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	match := buildFTSQuery(query)
	if match == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		INNER JOIN files f ON c.file_id = f.id
		WHERE chunks_fts MATCH ?
		AND f.project_id = ?
	`
	args := []interface{}{match, projectID}
	sqlQuery, args = applyFilters(sqlQuery, args, filters)

	// bm25() is lower for better matches
	sqlQuery += " ORDER BY score, c.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows, filters)
}

// applyFilters appends WHERE clause filters shared by vector and text search
func applyFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	query, args = appendIn(query, args, "c.chunk_type", filters.ChunkTypes)
	query, args = appendIn(query, args, "c.entity_kind", filters.EntityKinds)
	query, args = appendIn(query, args, "f.file_type", filters.FileTypes)

	if filters.FilePattern != "" {
		query += " AND f.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}
	return query, args
}

// appendIn adds "AND column IN (...)" for the non-empty values
func appendIn(query string, args []interface{}, column string, values []string) (string, []interface{}) {
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}
	if len(placeholders) == 0 {
		return query, args
	}
	return query + " AND " + column + " IN (" + strings.Join(placeholders, ",") + ")", args
}

// escapeLike builds a substring LIKE pattern with wildcards in s escaped
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func computeSimilarityScores(rows *sql.Rows, queryVector []float32, filters *SearchFilters) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var chunkID int64
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // embedded by another model
		}

		similarity := cosineSimilarity(queryVector, vector)
		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}
		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults returns the top limit candidates; limit <= 0 returns all
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// collectTextResults maps bm25 scores onto (0, 1], higher is better
func collectTextResults(rows *sql.Rows, filters *SearchFilters) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.ChunkID, &result.BM25Score); err != nil {
			return nil, err
		}

		result.BM25Score = 1.0 / (1.0 + math.Abs(result.BM25Score)/50.0)
		if filters != nil && filters.MinRelevance > 0 && result.BM25Score < filters.MinRelevance {
			continue
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// serializeVector converts a float32 slice to a little-endian byte blob
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type candidate struct {
	chunkID int64
	score   float64
}

// sortCandidates orders by score descending, then chunk id for stable output
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// buildFTSQuery turns free text into an FTS5 expression that ORs each word
// as a quoted phrase, so user input never reaches the FTS5 query grammar
func buildFTSQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(words) == 0 {
		return ""
	}
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + w + `"`
	}
	return strings.Join(terms, " OR ")
}

// SerializeVector encodes a vector for the embeddings table
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a vector read from the embeddings table
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity returns the cosine similarity of a and b, 0 on length mismatch
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
