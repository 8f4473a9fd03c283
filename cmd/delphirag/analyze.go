package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/indexer"
)

var (
	analyzeJSON    bool
	chunkIngestion bool
	fileRoot       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Show the entities, relationships and outline of one file",
	Long:  `Parse a single .pas file and print what would be extracted from it. Nothing is stored.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Show how one file would be chunked",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the parse result as JSON")
	chunkCmd.Flags().BoolVar(&chunkIngestion, "ingestion", false, "print chunks in the form sent to the RAG backend")
	for _, c := range []*cobra.Command{analyzeCmd, chunkCmd} {
		c.Flags().StringVar(&fileRoot, "root", ".", "project root entity ids are labelled against")
	}
}

// fileIndexer builds an indexer that can only analyze and chunk files
func fileIndexer() (*indexer.Indexer, error) {
	p, err := newParser()
	if err != nil {
		return nil, err
	}
	c := newChunker()
	return indexer.New(indexer.Options{Parser: p, Chunker: c, Logger: logger}), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	idx, err := fileIndexer()
	if err != nil {
		return err
	}

	file, result, err := idx.AnalyzeFile(context.Background(), fileRoot, args[0])
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s (%s, %s, %s)\n", file.Path, file.Type, file.Encoding, file.Category)
	if file.AutoGenerated {
		fmt.Printf("  auto-generated\n")
	}

	fmt.Printf("\nEntities (%d):\n", len(result.Entities))
	for _, e := range result.Entities {
		fmt.Printf("  %-10s %-40s lines %d-%d\n", e.Kind, e.Name, e.SourceLine, e.EndLine)
	}

	fmt.Printf("\nRelationships (%d):\n", len(result.Relationships))
	for _, r := range result.Relationships {
		fmt.Printf("  %s -> %s  (%s)\n", r.SourceID, r.TargetID, r.Description)
	}

	fmt.Printf("\nOutline:\n")
	for _, it := range result.Outline {
		fmt.Printf("  %5d  %-10s %s\n", it.Line, it.Kind, it.Name)
	}

	for _, pe := range result.Errors {
		fmt.Printf("\nwarning: line %d: %s\n", pe.Line, pe.Message)
	}
	return nil
}

func runChunk(cmd *cobra.Command, args []string) error {
	idx, err := fileIndexer()
	if err != nil {
		return err
	}

	chunks, err := idx.ChunkFile(context.Background(), fileRoot, args[0])
	if err != nil {
		return err
	}

	for i := range chunks {
		c := &chunks[i]
		fmt.Printf("%s\n", strings.Repeat("═", 60))
		fmt.Printf("#%d %s %s lines %d-%d, %d tokens", i+1, c.Type, c.EntityName, c.StartLine, c.EndLine, c.TokenCount)
		if c.TotalParts > 1 {
			fmt.Printf(", part %d/%d", c.PartIndex, c.TotalParts)
		}
		fmt.Println()
		fmt.Printf("%s\n", strings.Repeat("─", 60))

		if chunkIngestion {
			text, err := c.FormatForIngestion()
			if err != nil {
				return err
			}
			fmt.Println(text)
			continue
		}
		fmt.Println(c.Content)
	}
	return nil
}
