// Package rag hands extracted knowledge graphs to retrieval-augmented
// generation backends.
//
// A Sink receives one KnowledgeGraph per source file. LightRAGClient posts
// chunk texts, each followed by its [Metadata] trailer, to a LightRAG server
// and forwards questions to its query endpoint. Neo4jSink writes File,
// Entity and Chunk nodes with DEFINES, HAS_MEMBER and HAS_CHUNK edges.
// MultiSink fans a graph out to several sinks.
package rag
