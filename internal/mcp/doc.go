// Package mcp implements the Model Context Protocol (MCP) server for delphirag.
//
// The server exposes five tools to AI coding assistants:
//   - index_delphi: Ingest a Delphi project (entities, chunks, RAG delivery)
//   - analyze_file: Extract entities and the outline of one file without storing it
//   - search_chunks: Search indexed chunks with natural language or keywords
//   - query_rag: Ask the configured RAG backend a question
//   - get_status: Check ingestion status and statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The server is started via the serve command:
//
//	delphirag serve
//
// It listens on stdin for MCP messages and writes responses to stdout.
// Logs go to stderr.
//
// # Tool: index_delphi
//
//	Request:
//	{
//	  "name": "index_delphi",
//	  "arguments": {
//	    "path": "/work/erp",
//	    "force": false,
//	    "exclude": ["**/Generated/**"]
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "total_files": 412,
//	  "processed": 57,
//	  "skipped": 355,
//	  "auto_generated": 12,
//	  "chunks": 903,
//	  "entities": 1480,
//	  "duration_ms": 18234
//	}
//
// # Tool: search_chunks
//
//	Request:
//	{
//	  "name": "search_chunks",
//	  "arguments": {
//	    "path": "/work/erp",
//	    "query": "customer credit limit check",
//	    "filters": {"chunk_types": ["function"], "file_types": ["pas"]}
//	  }
//	}
//
// # Tool: get_status
//
// Returns {"indexed": false, ...} for a project that was never ingested,
// otherwise the project record, counts, health and the latest run.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "delphirag": {
//	      "command": "/usr/local/bin/delphirag",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENAI_API_KEY": "sk-...",
//	        "LIGHTRAG_API_URL": "http://localhost:9621"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values carrying JSON-RPC codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Path holds no Delphi sources
//   - -32002: Indexing in progress
//   - -32003: Project not indexed
//   - -32004: Empty query
//   - -32005: RAG backend unavailable
package mcp
