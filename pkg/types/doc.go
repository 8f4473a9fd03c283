// Package types provides shared type definitions for delphirag.
//
// This package defines the domain types that flow through the ingestion
// pipeline: entities and relationships extracted from Pascal/Delphi syntax
// trees, chunks produced from source text, parse results and search results.
//
// # Core Types
//
// Entity represents a named definition (class, interface, routine, property):
//
//	entity := types.Entity{
//	    ID:         types.EntityID("Unit1.pas", "TForm1"),
//	    Kind:       types.KindClass,
//	    Name:       "TForm1",
//	    SourceFile: "Unit1.pas",
//	    SourceLine: 12,
//	}
//
// Relationship links a container to one of its members:
//
//	rel := types.MemberOf(parent.ID, child)
//	// rel.Description == "Create is a member of Unit1.pas:TForm1"
//
// Chunk is a token-bounded region of source text:
//
//	chunk := types.Chunk{
//	    Content:    body,
//	    Type:       types.ChunkFunction,
//	    EntityName: "Create",
//	    LineNumber: 40,
//	}
//
// # Ingestion Format
//
// Plain-text RAG ingestion appends a metadata trailer to the content:
//
//	text, err := chunk.FormatForIngestion()
//	// <content>
//	//
//	// [Metadata]
//	// {
//	//   "chunkType": "function",
//	//   ...
//	// }
//
// KnowledgeGraph bundles chunks, entities and relationships for sinks that
// accept structured input.
//
// # Validation
//
// Entities and chunks implement Validate; kinds and chunk types are closed
// enums with Valid methods.
package types
