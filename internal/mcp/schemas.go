package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/pkg/types"
)

// indexDelphiTool returns the tool definition for index_delphi
func indexDelphiTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_delphi",
		Description: "Ingest a Delphi/Pascal source tree: extract entities, chunk .pas and .dfm files, store them and feed the RAG backend",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root (must contain .pas or .dfm files)",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Reprocess files whose content is unchanged",
					"default":     false,
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Clear recorded progress before starting",
					"default":     false,
				},
				"embed": map[string]interface{}{
					"type":        "boolean",
					"description": "Generate embeddings for new chunks",
					"default":     true,
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns relative to the root to skip (e.g. '**/Generated/**')",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"path"},
		},
	}
}

// analyzeFileTool returns the tool definition for analyze_file
func analyzeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_file",
		Description: "Extract classes, interfaces, routines and properties from one Pascal file without storing anything",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .pas or .dfm file",
				},
				"project_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute project root; entity ids are then labelled with the path relative to it, as in the index",
				},
				"include_chunks": map[string]interface{}{
					"type":        "boolean",
					"description": "Also return the chunks the file would be split into",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Search the indexed chunks of a Delphi project with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed project",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or identifiers)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"chunk_types": map[string]interface{}{
							"type":        "array",
							"description": "Filter by chunk type",
							"items": map[string]interface{}{
								"type": "string",
								"enum": chunkTypeNames(),
							},
						},
						"entity_kinds": map[string]interface{}{
							"type":        "array",
							"description": "Filter by entity kind",
							"items": map[string]interface{}{
								"type": "string",
								"enum": entityKindNames(),
							},
						},
						"file_types": map[string]interface{}{
							"type":        "array",
							"description": "Filter by file type",
							"items": map[string]interface{}{
								"type": "string",
								"enum": []string{"pas", "dfm"},
							},
						},
						"file_pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern for file paths (e.g., 'Source/*')",
						},
						"min_relevance": map[string]interface{}{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// queryRAGTool returns the tool definition for query_rag
func queryRAGTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_rag",
		Description: "Ask the RAG backend a question about the ingested Delphi code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Retrieval mode of the RAG backend",
					"enum":        []string{rag.ModeNaive, rag.ModeLocal, rag.ModeGlobal, rag.ModeHybrid, rag.ModeMix},
					"default":     rag.ModeHybrid,
				},
			},
			Required: []string{"question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query ingestion status and statistics for a Delphi project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

func chunkTypeNames() []string {
	return []string{
		string(types.ChunkFunction), string(types.ChunkClass), string(types.ChunkFunctionPart),
		string(types.ChunkText), string(types.ChunkFullFile), string(types.ChunkFullForm),
		string(types.ChunkPartialForm), string(types.ChunkContinuation), string(types.ChunkMixed),
	}
}

func entityKindNames() []string {
	names := make([]string, len(types.AllEntityKinds))
	for i, k := range types.AllEntityKinds {
		names[i] = string(k)
	}
	return names
}
