package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/delphirag/internal/classifier"
	"github.com/dshills/delphirag/internal/indexer"
	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/searcher"
	"github.com/dshills/delphirag/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not contain Delphi sources
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeRAGUnavailable     = -32005 // No RAG backend configured or reachable
)

// maxReportedErrors caps the per-file errors included in a response
const maxReportedErrors = 5

// handleIndexDelphi handles the index_delphi tool invocation
func (s *Server) handleIndexDelphi(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	if err := validateProject(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoDelphiFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	config := s.indexConfig
	config.Force = getBoolDefault(args, "force", false)
	config.Reset = getBoolDefault(args, "reset", false)
	config.Embed = getBoolDefault(args, "embed", true)
	config.Resume = !config.Reset
	if exclude := getStringSlice(args, "exclude"); len(exclude) > 0 {
		config.Exclude = append(append([]string{}, config.Exclude...), exclude...)
	}

	stats, err := s.indexer.IndexProject(ctx, path, &config)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// the index changed, cached searches are stale
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":         true,
		"run_id":          stats.RunID,
		"total_files":     stats.TotalFiles,
		"processed":       stats.Processed,
		"skipped":         stats.Skipped,
		"failed":          stats.Failed,
		"auto_generated":  stats.AutoGenerated,
		"parse_fallbacks": stats.ParseFallbacks,
		"removed":         stats.Removed,
		"chunks":          stats.Chunks,
		"entities":        stats.Entities,
		"relationships":   stats.Relationships,
		"embedded":        stats.Embedded,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		response["errors"] = stats.ErrorMessages[:min(n, maxReportedErrors)]
		response["error_count"] = n
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAnalyzeFile handles the analyze_file tool invocation
func (s *Server) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	if err := validateFile(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	root := getStringDefault(args, "project_path", "")
	if root != "" && !filepath.IsAbs(root) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "project_path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}

	file, result, err := s.indexer.AnalyzeFile(ctx, root, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "analysis failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entities := make([]map[string]interface{}, 0, len(result.Entities))
	for _, e := range result.Entities {
		entities = append(entities, map[string]interface{}{
			"id":          e.ID,
			"kind":        e.Kind,
			"name":        e.Name,
			"line":        e.SourceLine,
			"end_line":    e.EndLine,
			"description": e.Description,
		})
	}
	relationships := make([]map[string]interface{}, 0, len(result.Relationships))
	for _, r := range result.Relationships {
		relationships = append(relationships, map[string]interface{}{
			"source":      r.SourceID,
			"target":      r.TargetID,
			"description": r.Description,
		})
	}
	outline := make([]map[string]interface{}, 0, len(result.Outline))
	for _, it := range result.Outline {
		outline = append(outline, map[string]interface{}{
			"name":     it.Name,
			"kind":     it.Kind,
			"line":     it.Line,
			"end_line": it.EndLine,
		})
	}

	response := map[string]interface{}{
		"file":           file.Name(),
		"label":          indexer.FileLabel(root, path),
		"file_type":      file.Type,
		"encoding":       file.Encoding,
		"size_category":  file.Category,
		"auto_generated": file.AutoGenerated,
		"entities":       entities,
		"relationships":  relationships,
		"outline":        outline,
	}
	if len(result.Errors) > 0 {
		response["parse_errors"] = len(result.Errors)
	}

	if getBoolDefault(args, "include_chunks", false) {
		chunks, err := s.indexer.ChunkFile(ctx, root, path)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "chunking failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		out := make([]map[string]interface{}, 0, len(chunks))
		for _, c := range chunks {
			out = append(out, map[string]interface{}{
				"type":        c.Type,
				"entity_name": c.EntityName,
				"start_line":  c.StartLine,
				"end_line":    c.EndLine,
				"tokens":      c.TokenCount,
				"part":        c.PartIndex,
				"total_parts": c.TotalParts,
			})
		}
		response["chunks"] = out
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   mode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
			"path": path,
			"hint": "run index_delphi first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Mode:      mode,
		Filters:   parseFilters(args),
		ProjectID: project.ID,
		UseCache:  true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		item := map[string]interface{}{
			"rank":        r.Rank,
			"chunk_id":    r.ChunkID,
			"relevance":   r.RelevanceScore,
			"chunk_type":  r.ChunkType,
			"entity_name": r.EntityName,
			"entity_kind": r.EntityKind,
			"content":     r.Content,
		}
		if r.File != nil {
			item["file"] = r.File.Path
			item["start_line"] = r.File.StartLine
			item["end_line"] = r.File.EndLine
		}
		results = append(results, item)
	}

	response := map[string]interface{}{
		"query":          query,
		"search_mode":    resp.SearchMode,
		"total_results":  resp.TotalResults,
		"vector_results": resp.VectorResults,
		"text_results":   resp.TextResults,
		"cache_hit":      resp.CacheHit,
		"duration_ms":    resp.Duration.Milliseconds(),
		"results":        results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryRAG handles the query_rag tool invocation
func (s *Server) handleQueryRAG(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	mode := getStringDefault(args, "mode", rag.ModeHybrid)
	if err := rag.ValidateMode(mode); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param": "mode",
			"value": mode,
		})
	}

	if s.querier == nil {
		return nil, newMCPError(ErrorCodeRAGUnavailable, "no RAG backend configured", map[string]interface{}{
			"hint": "set LIGHTRAG_API_URL or enable lightrag in the config file",
		})
	}

	start := time.Now()
	answer, err := s.querier.Query(ctx, question, mode)
	if err != nil {
		return nil, newMCPError(ErrorCodeRAGUnavailable, "RAG query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"question":    question,
		"mode":        mode,
		"answer":      answer,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Project not indexed. Use the index_delphi tool to ingest it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":  true,
		"indexing": s.indexer.Busy(),
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"name":            project.Name,
			"index_version":   project.IndexVersion,
			"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]interface{}{
			"files_count":          status.FilesCount,
			"auto_generated_count": status.AutoGeneratedCount,
			"entities_count":       status.EntitiesCount,
			"relationships_count":  status.RelationshipsCount,
			"chunks_count":         status.ChunksCount,
			"embeddings_count":     status.EmbeddingsCount,
			"index_size_mb":        fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}
	if run := status.LastRun; run != nil {
		lastRun := map[string]interface{}{
			"id":             run.ID,
			"status":         run.Status,
			"files_total":    run.FilesTotal,
			"processed":      run.Processed,
			"skipped":        run.Skipped,
			"failed":         run.Failed,
			"auto_generated": run.AutoGenerated,
			"chunks":         run.Chunks,
			"started_at":     run.StartedAt.Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			lastRun["finished_at"] = run.FinishedAt.Format(time.RFC3339)
		}
		if run.Error != "" {
			lastRun["error"] = run.Error
		}
		response["last_run"] = lastRun
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requirePath extracts the path argument and makes it absolute and clean
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// validateProject checks that path is a readable directory holding at
// least one Delphi source file
func validateProject(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	found := errors.New("found")
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && classifier.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if classifier.TypeOf(p) != classifier.FileOther {
			return found
		}
		return nil
	})
	if errors.Is(err, found) {
		return nil
	}
	return ErrNoDelphiFiles
}

// validateFile checks that path is a readable .pas or .dfm file
func validateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrIsDirectory
	}
	if classifier.TypeOf(path) == classifier.FileOther {
		return ErrNotDelphiFile
	}
	return nil
}

// parseFilters converts the filters argument into storage filters
func parseFilters(args map[string]interface{}) *storage.SearchFilters {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok {
		return nil
	}
	filters := &storage.SearchFilters{
		ChunkTypes:   getStringSlice(raw, "chunk_types"),
		EntityKinds:  getStringSlice(raw, "entity_kinds"),
		FileTypes:    getStringSlice(raw, "file_types"),
		FilePattern:  getStringDefault(raw, "file_pattern", ""),
		MinRelevance: getFloatDefault(raw, "min_relevance", 0),
	}
	return filters
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array, ignoring non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrNoDelphiFiles   = errors.New("directory does not contain .pas or .dfm files")
	ErrNotDelphiFile   = errors.New("file is not a .pas or .dfm file")
)
